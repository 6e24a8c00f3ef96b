// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diskbuffer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bureau-foundation/diskbuffer/lib/frame"
)

// maxNameCollisions bounds the disambiguating suffix search. Hitting
// it would mean a hundred size-rotations within one millisecond with
// a 1 MiB-class file cap, which indicates something is deeply wrong
// with the clock.
const maxNameCollisions = 100

// folder is the file ledger for one signal: the single source of
// truth for which buffer files exist, which one is active, and when
// files are rotated, evicted, or expired.
//
// The mutex guards the active-file slot. An append and the rotation
// decision it may trigger are one critical section, so concurrent
// producers cannot interleave frames or race two files into the
// active role. The read path deliberately takes no lock: the
// MinFileAgeForRead > MaxFileAgeForWrite invariant keeps readers away
// from any file the writer could still touch.
type folder struct {
	dir      string
	cfg      Config
	journal  *dropJournal
	counters *counters
	logger   *slog.Logger

	mu              sync.Mutex
	active          *frame.Writer
	activeName      string
	activeCreatedAt time.Time
}

// openFolder ensures the signal subdirectory exists and returns its
// ledger. No buffer file is opened until the first append.
func openFolder(dir string, cfg Config, journal *dropJournal, counters *counters, logger *slog.Logger) (*folder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diskbuffer: creating signal folder %s: %w", dir, err)
	}
	return &folder{
		dir:      dir,
		cfg:      cfg,
		journal:  journal,
		counters: counters,
		logger:   logger,
	}, nil
}

// append writes one frame payload to the active file, rotating first
// if the active file is closed-for-write by age or size. The whole
// step is one critical section.
func (f *folder) append(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.cfg.Clock.Now()
	writer, err := f.currentWritable(now)
	if err != nil {
		return err
	}
	if err := writer.Append(payload); err != nil {
		// Drop the active reference so the ledger holds no
		// half-written file handle; the next append reopens or
		// recreates.
		f.closeActive("append failed")
		return err
	}
	return nil
}

// currentWritable returns the active file's writer, rotating or
// creating as needed. Caller holds f.mu.
func (f *folder) currentWritable(now time.Time) (*frame.Writer, error) {
	if f.active != nil {
		if f.writable(now, f.activeCreatedAt, f.active.Size()) {
			return f.active, nil
		}
		f.closeActive("closed for write")
	}

	// After a restart the newest on-disk file may still be young and
	// small enough to keep filling. Adoption is only legal while the
	// file's age is within MaxFileAgeForWrite, which by the
	// configuration invariant means no reader can have seen it yet.
	files, err := ListBufferFiles(f.dir)
	if err != nil {
		return nil, err
	}
	if len(files) > 0 {
		newest := files[len(files)-1]
		if f.writable(now, newest.CreatedAt, newest.Size) {
			writer, err := frame.OpenWriter(newest.Path)
			if err != nil {
				return nil, err
			}
			f.active = writer
			f.activeName = newest.Name
			f.activeCreatedAt = newest.CreatedAt
			f.debug("adopted buffer file", "file", newest.Name, "size", newest.Size)
			return writer, nil
		}
	}

	return f.createActive(now)
}

// writable reports whether a file with the given creation time and
// size may still accept appends.
func (f *folder) writable(now, createdAt time.Time, size int64) bool {
	return now.Sub(createdAt) <= f.cfg.MaxFileAgeForWrite && size < f.cfg.MaxFileSizeBytes
}

// createActive creates a fresh buffer file stamped with the current
// clock reading and makes it the active file. Caller holds f.mu.
func (f *folder) createActive(now time.Time) (*frame.Writer, error) {
	for sequence := 0; sequence < maxNameCollisions; sequence++ {
		name := formatFileName(now, sequence)
		path := filepath.Join(f.dir, name)

		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("diskbuffer: probing %s: %w", path, err)
		}

		writer, err := frame.OpenWriter(path)
		if err != nil {
			return nil, err
		}
		f.active = writer
		f.activeName = name
		f.activeCreatedAt = now
		f.counters.filesCreated.Add(1)
		f.debug("created buffer file", "file", name)
		return writer, nil
	}
	return nil, fmt.Errorf("diskbuffer: %d name collisions at %v in %s", maxNameCollisions, now, f.dir)
}

// closeActive flushes and releases the active file, if any. Caller
// holds f.mu. Close errors are logged, not returned: by the time a
// file leaves the active role its frames are already flushed, so the
// failure mode is an fd leak, not data loss.
func (f *folder) closeActive(why string) {
	if f.active == nil {
		return
	}
	if err := f.active.Close(); err != nil {
		f.logger.Warn("closing buffer file", "file", f.activeName, "error", err)
	} else {
		f.debug("released buffer file", "file", f.activeName, "why", why)
	}
	f.active = nil
	f.activeName = ""
	f.activeCreatedAt = time.Time{}
}

// oldestReadable returns the oldest file whose age is at least
// MinFileAgeForRead and which is not the active file. Files past the
// retention ceiling are skipped here — the reclaimer deletes them.
// The second return value is false when nothing qualifies.
func (f *folder) oldestReadable() (FileInfo, bool, error) {
	now := f.cfg.Clock.Now()
	activeName := f.activeFileName()

	files, err := ListBufferFiles(f.dir)
	if err != nil {
		return FileInfo{}, false, err
	}
	for _, info := range files {
		if info.Name == activeName {
			continue
		}
		age := now.Sub(info.CreatedAt)
		if age > f.cfg.MaxFileAgeForRead {
			continue
		}
		if age < f.cfg.MinFileAgeForRead {
			// Files are listed oldest first; everything after this
			// one is younger still.
			break
		}
		return info, true, nil
	}
	return FileInfo{}, false, nil
}

// reclaim enforces retention: files past the ceiling are expired,
// then the oldest files are evicted while the folder exceeds its
// size cap. The active file is exempt from both (it is bounded by
// MaxFileSizeBytes, so the folder can overshoot by at most one
// file). Every deletion is a data-loss event: counted, logged, and
// journaled — never an error to the caller.
//
// reclaim holds the ledger mutex for the whole pass. That serializes
// it with appends, so "the active file" is a stable fact while
// deletion candidates are chosen, and no writer handle can point at
// a file being unlinked.
func (f *folder) reclaim() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.cfg.Clock.Now()

	// Release the active file if it aged out of the writable window
	// with no append around to notice. Retention below must be free
	// to expire or evict it like any other closed file.
	if f.active != nil && !f.writable(now, f.activeCreatedAt, f.active.Size()) {
		f.closeActive("closed for write")
	}
	activeName := f.activeName

	files, err := ListBufferFiles(f.dir)
	if err != nil {
		return err
	}

	live := files[:0]
	var total int64
	for _, info := range files {
		if info.Name != activeName && now.Sub(info.CreatedAt) > f.cfg.MaxFileAgeForRead {
			f.drop(info, DropExpired, now)
			continue
		}
		live = append(live, info)
		total += info.Size
	}

	for _, info := range live {
		if total <= f.cfg.MaxFolderSizeBytes {
			break
		}
		if info.Name == activeName {
			continue
		}
		f.drop(info, DropEvicted, now)
		total -= info.Size
	}
	return nil
}

// drop deletes a buffer file for a retention reason and records the
// data loss.
func (f *folder) drop(info FileInfo, reason DropReason, now time.Time) {
	if err := os.Remove(info.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		f.logger.Warn("failed to drop buffer file", "file", info.Name, "reason", reason, "error", err)
		return
	}

	switch reason {
	case DropExpired:
		f.counters.filesExpired.Add(1)
	case DropEvicted:
		f.counters.filesEvicted.Add(1)
	}
	f.counters.bytesDropped.Add(uint64(info.Size))

	f.logger.Warn("dropped buffer file",
		"reason", reason,
		"file", info.Name,
		"bytes", info.Size,
		"age", now.Sub(info.CreatedAt),
	)
	f.journalDrop(DropRecord{Time: now, Reason: reason, File: info.Name, Bytes: info.Size})
}

// journalDrop records a data-loss event in the drop journal.
// Best-effort: a journal failure is logged and swallowed.
func (f *folder) journalDrop(record DropRecord) {
	if f.journal == nil {
		return
	}
	if err := f.journal.append(record); err != nil {
		f.logger.Warn("drop journal append failed", "error", err)
	}
}

// finalize concludes a consume pass over a file: deletion when fully
// consumed, preservation (for redelivery) otherwise. A file that
// vanished in the meantime — the reclaimer got there first — counts
// as finalized.
func (f *folder) finalize(info FileInfo, fullyConsumed bool) error {
	if !fullyConsumed {
		f.debug("preserved buffer file for redelivery", "file", info.Name)
		return nil
	}
	if err := os.Remove(info.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("diskbuffer: removing consumed file %s: %w", info.Path, err)
	}
	f.counters.filesConsumed.Add(1)
	f.debug("finalized buffer file", "file", info.Name)
	return nil
}

// activeFileName returns the name of the active file, or "" when no
// file is active.
func (f *folder) activeFileName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeName
}

// close releases the active writer. Further appends would recreate
// it, so callers close the Storage, not the folder, to stop writes.
func (f *folder) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return nil
	}
	err := f.active.Close()
	f.active = nil
	f.activeName = ""
	f.activeCreatedAt = time.Time{}
	if err != nil {
		return fmt.Errorf("diskbuffer: closing active file: %w", err)
	}
	return nil
}

// debug emits a storage-decision log line. The Debug config flag
// promotes these to info level so they show up without reconfiguring
// the logger.
func (f *folder) debug(msg string, args ...any) {
	if f.cfg.Debug {
		f.logger.Info(msg, args...)
		return
	}
	f.logger.Debug(msg, args...)
}
