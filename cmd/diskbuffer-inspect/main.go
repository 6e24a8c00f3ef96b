// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/diskbuffer/lib/diskbuffer"
	"github.com/bureau-foundation/diskbuffer/lib/frame"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var root string
	var signalFlag string
	var outputJSON bool
	var fingerprint bool
	var showDrops bool

	flagSet := pflag.NewFlagSet("diskbuffer-inspect", pflag.ContinueOnError)
	flagSet.StringVar(&root, "root", "", "buffer root directory (required)")
	flagSet.StringVar(&signalFlag, "signal", "", "inspect one signal (default: every signal under the root)")
	flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
	flagSet.BoolVar(&fingerprint, "fingerprint", false, "include a BLAKE3 content fingerprint per file")
	flagSet.BoolVar(&showDrops, "drops", false, "print the drop journal instead of the file listing")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	if root == "" {
		return fmt.Errorf("--root is required")
	}

	signals, err := resolveSignals(root, signalFlag)
	if err != nil {
		return err
	}

	if showDrops {
		return printDrops(root, signals, outputJSON)
	}
	return printFiles(root, signals, outputJSON, fingerprint)
}

// resolveSignals returns the signals to inspect: the one named by the
// flag, or every subdirectory of the root that is a valid signal name.
func resolveSignals(root, signalFlag string) ([]diskbuffer.Signal, error) {
	if signalFlag != "" {
		signal := diskbuffer.Signal(signalFlag)
		if err := signal.Validate(); err != nil {
			return nil, err
		}
		return []diskbuffer.Signal{signal}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading buffer root %s: %w", root, err)
	}
	var signals []diskbuffer.Signal
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		signal := diskbuffer.Signal(entry.Name())
		if signal.Validate() != nil {
			continue
		}
		signals = append(signals, signal)
	}
	if len(signals) == 0 {
		return nil, fmt.Errorf("no signal folders under %s", root)
	}
	return signals, nil
}

type fileReport struct {
	Signal      string    `json:"signal"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	Age         string    `json:"age"`
	SizeBytes   int64     `json:"size_bytes"`
	Batches     int       `json:"batches"`
	Truncated   bool      `json:"truncated"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

func printFiles(root string, signals []diskbuffer.Signal, outputJSON, fingerprint bool) error {
	now := time.Now()
	reports := []fileReport{}

	for _, signal := range signals {
		files, err := diskbuffer.ListBufferFiles(diskbuffer.SignalDir(root, signal))
		if err != nil {
			return err
		}
		for _, info := range files {
			report := fileReport{
				Signal:    string(signal),
				Name:      info.Name,
				CreatedAt: info.CreatedAt,
				Age:       now.Sub(info.CreatedAt).Truncate(time.Second).String(),
				SizeBytes: info.Size,
			}
			report.Batches, report.Truncated, err = countBatches(info.Path)
			if err != nil {
				return err
			}
			if fingerprint {
				report.Fingerprint, err = fingerprintFile(info.Path)
				if err != nil {
					return err
				}
			}
			reports = append(reports, report)
		}
	}

	if outputJSON {
		return writeJSON(reports)
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	header := "SIGNAL\tFILE\tAGE\tSIZE\tBATCHES\tTRUNCATED"
	if fingerprint {
		header += "\tFINGERPRINT"
	}
	fmt.Fprintln(tw, header)
	for _, report := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%v",
			report.Signal, report.Name, report.Age, report.SizeBytes, report.Batches, report.Truncated)
		if fingerprint {
			fmt.Fprintf(tw, "\t%.16s", report.Fingerprint)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// countBatches counts the complete frames in a buffer file and reports
// whether the file ends in a torn frame. Payloads are not decoded.
func countBatches(path string) (int, bool, error) {
	reader, err := frame.OpenReader(path)
	if err != nil {
		return 0, false, err
	}
	defer reader.Close()

	count := 0
	for {
		if _, err := reader.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return count, reader.Truncated(), nil
			}
			return count, false, err
		}
		count++
	}
}

// fingerprintFile returns the hex BLAKE3 hash of the file's raw bytes,
// frames included. Two files with the same fingerprint hold the same
// buffered data.
func fingerprintFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

type dropReport struct {
	Signal string    `json:"signal"`
	Time   time.Time `json:"time"`
	Reason string    `json:"reason"`
	File   string    `json:"file"`
	Bytes  int64     `json:"bytes"`
}

func printDrops(root string, signals []diskbuffer.Signal, outputJSON bool) error {
	reports := []dropReport{}
	for _, signal := range signals {
		records, err := diskbuffer.ReadDropJournal(diskbuffer.DropJournalPath(root, signal))
		if err != nil {
			return err
		}
		for _, record := range records {
			reports = append(reports, dropReport{
				Signal: string(signal),
				Time:   record.Time,
				Reason: string(record.Reason),
				File:   record.File,
				Bytes:  record.Bytes,
			})
		}
	}

	if outputJSON {
		return writeJSON(reports)
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "SIGNAL\tTIME\tREASON\tFILE\tBYTES")
	for _, report := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			report.Signal, report.Time.Format(time.RFC3339), report.Reason, report.File, report.Bytes)
	}
	return tw.Flush()
}

func writeJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
