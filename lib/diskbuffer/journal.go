// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diskbuffer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// DropReason classifies why a buffer file was deleted without being
// fully delivered.
type DropReason string

const (
	// DropEvicted: the folder exceeded its size cap and the file was
	// the oldest.
	DropEvicted DropReason = "evicted"

	// DropExpired: the file outlived the hard retention ceiling.
	DropExpired DropReason = "expired"

	// DropCorrupt: a single record failed to decode during consume
	// and was skipped.
	DropCorrupt DropReason = "corrupt"
)

// DropRecord is one entry in a signal's drop journal. Bytes is the
// on-disk size of the dropped file, or the payload size for a
// skipped corrupt record.
type DropRecord struct {
	Time   time.Time  `cbor:"time"`
	Reason DropReason `cbor:"reason"`
	File   string     `cbor:"file"`
	Bytes  int64      `cbor:"bytes"`
}

// dropJournal is an append-only CBOR stream of DropRecords, one file
// per signal, living next to (not inside) the signal folder so the
// ledger's directory scan never sees it.
//
// Journal writes are best-effort: retention bookkeeping must never
// make a storage operation fail, so append errors are logged and
// swallowed by the caller.
type dropJournal struct {
	mu   sync.Mutex
	path string
}

// DropJournalPath returns the journal location for a signal under a
// root directory.
func DropJournalPath(rootDirectory string, signal Signal) string {
	return filepath.Join(rootDirectory, string(signal)+".droplog")
}

// append encodes one record and appends it to the journal file,
// creating the file on first use. Each record is a self-delimiting
// CBOR item, so the file as a whole is a valid CBOR sequence.
func (j *dropJournal) append(record DropRecord) error {
	data, err := cbor.Marshal(record)
	if err != nil {
		return fmt.Errorf("diskbuffer: encoding drop record: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(j.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("diskbuffer: opening drop journal: %w", err)
	}
	_, writeErr := file.Write(data)
	closeErr := file.Close()
	if writeErr != nil {
		return fmt.Errorf("diskbuffer: appending drop record: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("diskbuffer: closing drop journal: %w", closeErr)
	}
	return nil
}

// ReadDropJournal decodes all records from a signal's drop journal.
// A missing journal is an empty history, not an error. A torn final
// record (crash mid-append) ends the result at the last complete
// record, mirroring how buffer files themselves are read.
func ReadDropJournal(path string) ([]DropRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("diskbuffer: opening drop journal %s: %w", path, err)
	}
	defer file.Close()

	var records []DropRecord
	decoder := cbor.NewDecoder(file)
	for {
		var record DropRecord
		if err := decoder.Decode(&record); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return records, nil
			}
			return records, fmt.Errorf("diskbuffer: decoding drop journal %s: %w", path, err)
		}
		records = append(records, record)
	}
}
