// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diskbuffer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Buffer file names encode the creation time as zero-padded unix
// milliseconds, 16 digits wide, so that a lexicographic directory
// listing is also the chronological one. When two files are created
// within the same millisecond (back-to-back size rotations), a
// numeric suffix disambiguates: "0001768478400000-01" sorts after
// "0001768478400000" and before the next millisecond, preserving
// creation order.
const fileNameTimeWidth = 16

// formatFileName builds the name for a file created at t. sequence
// zero produces the bare timestamp; higher values add the
// disambiguating suffix.
func formatFileName(t time.Time, sequence int) string {
	base := fmt.Sprintf("%0*d", fileNameTimeWidth, t.UnixMilli())
	if sequence == 0 {
		return base
	}
	return fmt.Sprintf("%s-%02d", base, sequence)
}

// parseFileName extracts the creation time from a buffer file name.
// Returns false for anything that is not a buffer file (temp files,
// stray editor droppings); the ledger ignores those entirely.
func parseFileName(name string) (time.Time, bool) {
	if len(name) < fileNameTimeWidth {
		return time.Time{}, false
	}
	base := name[:fileNameTimeWidth]
	for _, r := range base {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
	}
	if rest := name[fileNameTimeWidth:]; rest != "" {
		if len(rest) < 2 || rest[0] != '-' {
			return time.Time{}, false
		}
		for _, r := range rest[1:] {
			if r < '0' || r > '9' {
				return time.Time{}, false
			}
		}
	}
	millis, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

// FileInfo describes one buffer file in a signal folder.
type FileInfo struct {
	// Name is the bare file name (creation timestamp, possibly with
	// a collision suffix).
	Name string

	// Path is the full filesystem path.
	Path string

	// CreatedAt is the creation time decoded from the name.
	CreatedAt time.Time

	// Size is the current size on disk in bytes.
	Size int64
}

// ListBufferFiles enumerates the buffer files in a folder, oldest
// first. Entries that are not buffer files (unparseable names,
// subdirectories) are skipped, as are files that vanish between the
// directory read and the stat — the reclaimer may be deleting
// concurrently.
func ListBufferFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("diskbuffer: listing folder %s: %w", dir, err)
	}

	// os.ReadDir sorts by filename, which for buffer files is
	// creation order.
	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		createdAt, ok := parseFileName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("diskbuffer: statting %s: %w", entry.Name(), err)
		}
		files = append(files, FileInfo{
			Name:      entry.Name(),
			Path:      filepath.Join(dir, entry.Name()),
			CreatedAt: createdAt,
			Size:      info.Size(),
		})
	}
	return files, nil
}
