// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader scans length-prefixed frames sequentially from offset zero
// to end of file. The sequence is finite and non-restartable: once
// Next has returned io.EOF, the reader is exhausted. Re-reading a
// file means opening a new Reader.
//
// A truncated trailing frame — a partial length prefix, or a length
// prefix whose payload ends early — terminates the sequence with
// io.EOF instead of an error. That is the normal appearance of a file
// the process was appending to when it crashed, and everything before
// the torn frame is still valid. The same treatment applies to a
// length prefix that cannot be a real frame (zero, or above
// MaxPayloadSize): the tail is corrupt, the prior frames are not.
type Reader struct {
	file      *os.File
	buf       *bufio.Reader
	truncated bool
	done      bool
}

// OpenReader opens the file at path for sequential frame reads.
func OpenReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s for read: %w", path, err)
	}
	return &Reader{
		file: file,
		buf:  bufio.NewReader(file),
	}, nil
}

// Next returns the next payload, or io.EOF when the file is
// exhausted. The returned slice is freshly allocated and owned by the
// caller. Errors other than io.EOF indicate a real I/O failure
// (permission change, file vanished mid-read), not end of data.
func (r *Reader) Next() ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}

	var header [lengthSize]byte
	if _, err := io.ReadFull(r.buf, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			// Clean end: the previous frame was the last one.
			r.done = true
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// Partial length prefix: torn trailing frame.
			r.done = true
			r.truncated = true
			return nil, io.EOF
		}
		return nil, fmt.Errorf("frame: reading length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || length > MaxPayloadSize {
		// Not a plausible frame. Stop here; everything already
		// returned is intact.
		r.done = true
		r.truncated = true
		return nil, io.EOF
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.buf, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// The payload ends before its declared length: torn
			// trailing frame.
			r.done = true
			r.truncated = true
			return nil, io.EOF
		}
		return nil, fmt.Errorf("frame: reading %d-byte payload: %w", length, err)
	}

	return payload, nil
}

// Truncated reports whether the scan ended at a torn or implausible
// trailing frame rather than a clean end of file. Only meaningful
// after Next has returned io.EOF.
func (r *Reader) Truncated() bool { return r.truncated }

// Close closes the underlying file.
func (r *Reader) Close() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("frame: closing file: %w", err)
	}
	return nil
}
