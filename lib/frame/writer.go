// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// lengthSize is the byte width of the frame length prefix.
const lengthSize = 4

// MaxPayloadSize is the largest payload a single frame may carry.
// The limit exists so that a corrupted length prefix read back from
// disk cannot cause a multi-gigabyte allocation. 64 MiB is far above
// any realistic telemetry batch.
const MaxPayloadSize = 64 << 20

// Writer appends length-prefixed frames to a single file. Appends go
// through a buffered writer that is flushed before Append returns:
// after a successful Append the frame is in the kernel's hands, and a
// process crash can lose at most the frame currently being written.
//
// Writer is not safe for concurrent use. The folder ledger serializes
// appends with its own mutex, because the append must be atomic with
// the rotation decision anyway.
type Writer struct {
	file *os.File
	buf  *bufio.Writer
	size int64
}

// OpenWriter opens the file at path for appending, creating it if it
// does not exist. The reported Size includes any bytes already in the
// file from a previous process.
func OpenWriter(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s for append: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("statting %s: %w", path, err)
	}
	return &Writer{
		file: file,
		buf:  bufio.NewWriter(file),
		size: info.Size(),
	}, nil
}

// Append writes one [length][payload] frame and flushes it to the
// file. Empty payloads are refused: a zero length prefix is how the
// reader recognizes a corrupted tail, so one must never be written
// deliberately.
func (w *Writer) Append(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("frame: refusing to append empty payload")
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("frame: payload size %d exceeds maximum %d", len(payload), MaxPayloadSize)
	}

	var header [lengthSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.buf.Write(header[:]); err != nil {
		return fmt.Errorf("frame: writing length prefix: %w", err)
	}
	if _, err := w.buf.Write(payload); err != nil {
		return fmt.Errorf("frame: writing payload: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("frame: flushing frame: %w", err)
	}

	w.size += int64(lengthSize + len(payload))
	return nil
}

// Size returns the current file size in bytes, including all flushed
// frames and any content present when the writer was opened.
func (w *Writer) Size() int64 { return w.size }

// Name returns the path the writer was opened with.
func (w *Writer) Name() string { return w.file.Name() }

// Close flushes buffered data and closes the file. The file is closed
// even when the flush fails; the first error encountered is returned.
func (w *Writer) Close() error {
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("frame: flushing on close: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("frame: closing file: %w", closeErr)
	}
	return nil
}
