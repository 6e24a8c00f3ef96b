// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diskbuffer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/bureau-foundation/diskbuffer/lib/clock"
	"github.com/bureau-foundation/diskbuffer/lib/frame"
)

// Outcome is the handler's verdict on a single replayed batch.
type Outcome int

const (
	// Delivered: the batch reached its destination; the replay moves
	// to the next record.
	Delivered Outcome = iota

	// Retryable: delivery failed transiently. The consume pass stops
	// and the file is preserved; a later pass replays it from the
	// start.
	Retryable

	// Fatal: delivery failed permanently from the handler's point of
	// view. Behaves exactly like Retryable here — the distinction
	// exists for the caller's own logging and metrics.
	Fatal
)

// String returns the outcome name for logs.
func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Handler delivers one replayed batch, in FIFO order across files and
// within a file. Handlers must be idempotent or tolerate duplicates:
// a file interrupted mid-replay is redelivered in full on the next
// pass.
type Handler func(ctx context.Context, batch []byte) Outcome

// ConsumeResult describes what one Consume pass did. The zero value
// (Processed false) means no file was read-eligible.
type ConsumeResult struct {
	// Processed is true when a file was opened and offered to the
	// handler.
	Processed bool

	// File is the name of the processed file.
	File string

	// Delivered is the number of batches the handler accepted before
	// the pass ended.
	Delivered int

	// Finalized is true when every batch was delivered and the file
	// was deleted.
	Finalized bool

	// Truncated is true when the file ended in a torn trailing frame
	// (a crash artifact). The complete batches before it were still
	// replayed.
	Truncated bool
}

// Stats holds cumulative counters for one Storage instance. Drops
// (eviction, expiry, corrupt records) are expected outcomes of
// bounded retention, reported here rather than as errors so callers
// can alert on them separately from I/O failures.
type Stats struct {
	BatchesWritten   uint64
	BatchesDelivered uint64
	BatchesCorrupt   uint64
	FilesCreated     uint64
	FilesConsumed    uint64
	FilesEvicted     uint64
	FilesExpired     uint64
	BytesDropped     uint64
}

// counters is the shared mutable backing for Stats.
type counters struct {
	batchesWritten   atomic.Uint64
	batchesDelivered atomic.Uint64
	batchesCorrupt   atomic.Uint64
	filesCreated     atomic.Uint64
	filesConsumed    atomic.Uint64
	filesEvicted     atomic.Uint64
	filesExpired     atomic.Uint64
	bytesDropped     atomic.Uint64
}

// Storage is the disk-buffered queue for one signal type: Write
// persists batches, Consume replays them oldest-first through a
// handler. Both are synchronous — they perform file I/O on the
// calling goroutine. Producers may call Write concurrently; Consume
// is meant for a single replay loop at a time.
//
// Running two Storage instances (in any process) against the same
// root directory and signal is unsupported and can corrupt the
// active file.
type Storage struct {
	signal   Signal
	cfg      Config
	folder   *folder
	clock    clock.Clock
	logger   *slog.Logger
	counters counters
	closed   atomic.Bool
}

// Open validates the configuration and prepares the signal's folder.
// Validation failures (bad bounds, invalid signal name) are reported
// before any directory is created; directory creation failures are
// I/O errors from the root or signal path.
func Open(signal Signal, cfg Config) (*Storage, error) {
	if err := signal.Validate(); err != nil {
		return nil, fmt.Errorf("diskbuffer: %w", err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.RootDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("diskbuffer: creating root directory %s: %w", cfg.RootDirectory, err)
	}

	s := &Storage{
		signal: signal,
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: cfg.Logger.With("signal", string(signal)),
	}

	journal := &dropJournal{path: DropJournalPath(cfg.RootDirectory, signal)}
	dir := SignalDir(cfg.RootDirectory, signal)
	fld, err := openFolder(dir, cfg, journal, &s.counters, s.logger)
	if err != nil {
		return nil, err
	}
	s.folder = fld

	if cfg.Debug {
		s.logger.Info("opened disk buffer",
			"dir", dir,
			"max_file_size", cfg.MaxFileSizeBytes,
			"max_folder_size", cfg.MaxFolderSizeBytes,
			"max_file_age_for_write", cfg.MaxFileAgeForWrite,
			"min_file_age_for_read", cfg.MinFileAgeForRead,
			"max_file_age_for_read", cfg.MaxFileAgeForRead,
			"compression", cfg.Compression,
		)
	}
	return s, nil
}

// Write durably buffers one serialized batch. On error the batch is
// not buffered — nothing is retried or held in memory here, so the
// caller decides whether to drop it, block, or export directly.
// After a successful append, retention is enforced; a write can
// therefore cause older files to be dropped, which is reported via
// Stats and the drop journal, not as an error.
func (s *Storage) Write(batch []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("diskbuffer: storage is closed")
	}
	if len(batch) == 0 {
		return fmt.Errorf("diskbuffer: refusing to write empty batch")
	}

	payload, err := encodePayload(batch, s.cfg.Compression)
	if err != nil {
		return err
	}
	if err := s.folder.append(payload); err != nil {
		return err
	}
	s.counters.batchesWritten.Add(1)

	if err := s.folder.reclaim(); err != nil {
		// The batch is on disk; a reclamation hiccup (transient stat
		// failure) must not look like a failed write.
		s.logger.Warn("reclaim after write failed", "error", err)
	}
	return nil
}

// Consume replays the oldest read-eligible file through the handler,
// one batch at a time in write order. When no file qualifies, it
// returns a zero ConsumeResult and nil error — not an error
// condition, just nothing to do yet.
//
// The file is deleted only if every batch came back Delivered. A
// Retryable or Fatal outcome, a context cancellation, or an I/O
// failure mid-file preserves it for a later pass, which replays it
// from the start (at-least-once delivery; there is no persisted read
// cursor). A corrupt record — one that fails payload decoding — is
// skipped and counted rather than wedging the file forever.
func (s *Storage) Consume(ctx context.Context, handler Handler) (ConsumeResult, error) {
	if s.closed.Load() {
		return ConsumeResult{}, fmt.Errorf("diskbuffer: storage is closed")
	}
	if handler == nil {
		return ConsumeResult{}, fmt.Errorf("diskbuffer: handler is required")
	}

	if err := s.folder.reclaim(); err != nil {
		return ConsumeResult{}, err
	}

	info, ok, err := s.folder.oldestReadable()
	if err != nil {
		return ConsumeResult{}, err
	}
	if !ok {
		return ConsumeResult{}, nil
	}

	result, err := s.replayFile(ctx, info, handler)
	if err != nil {
		return result, err
	}

	if err := s.folder.finalize(info, result.Finalized); err != nil {
		return result, err
	}
	return result, nil
}

// replayFile streams one file through the handler and decides whether
// it was fully consumed. Sets Finalized on the result; the caller
// performs the actual finalization.
func (s *Storage) replayFile(ctx context.Context, info FileInfo, handler Handler) (ConsumeResult, error) {
	result := ConsumeResult{Processed: true, File: info.Name}

	reader, err := frame.OpenReader(info.Path)
	if err != nil {
		return result, err
	}
	defer reader.Close()

	for {
		if err := ctx.Err(); err != nil {
			// Abandoned at a record boundary: never finalized, so
			// nothing accepted so far can be silently lost.
			return result, err
		}

		payload, err := reader.Next()
		if errors.Is(err, io.EOF) {
			result.Truncated = reader.Truncated()
			result.Finalized = true
			return result, nil
		}
		if err != nil {
			return result, err
		}

		batch, err := decodePayload(payload, s.cfg.Compression)
		if err != nil {
			// A record that cannot be decoded will never decode on
			// any future pass either; skipping it is the only way
			// the rest of the file ever gets delivered.
			s.counters.batchesCorrupt.Add(1)
			s.logger.Warn("skipping corrupt batch", "file", info.Name, "error", err)
			s.folder.journalDrop(DropRecord{
				Time:   s.clock.Now(),
				Reason: DropCorrupt,
				File:   info.Name,
				Bytes:  int64(len(payload)),
			})
			continue
		}

		switch outcome := handler(ctx, batch); outcome {
		case Delivered:
			result.Delivered++
			s.counters.batchesDelivered.Add(1)
		default:
			s.debug("consume pass halted", "file", info.Name, "outcome", outcome, "delivered", result.Delivered)
			return result, nil
		}
	}
}

// Stats returns a snapshot of the cumulative counters.
func (s *Storage) Stats() Stats {
	return Stats{
		BatchesWritten:   s.counters.batchesWritten.Load(),
		BatchesDelivered: s.counters.batchesDelivered.Load(),
		BatchesCorrupt:   s.counters.batchesCorrupt.Load(),
		FilesCreated:     s.counters.filesCreated.Load(),
		FilesConsumed:    s.counters.filesConsumed.Load(),
		FilesEvicted:     s.counters.filesEvicted.Load(),
		FilesExpired:     s.counters.filesExpired.Load(),
		BytesDropped:     s.counters.bytesDropped.Load(),
	}
}

// Signal returns the signal this storage buffers.
func (s *Storage) Signal() Signal { return s.signal }

// Close flushes and releases the active file. Buffered data stays on
// disk; a future Storage for the same signal picks it up. Write and
// Consume fail after Close.
func (s *Storage) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.folder.close()
}

// debug mirrors folder.debug for facade-level decisions.
func (s *Storage) debug(msg string, args ...any) {
	if s.cfg.Debug {
		s.logger.Info(msg, args...)
		return
	}
	s.logger.Debug(msg, args...)
}
