// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package frame implements length-prefixed binary framing over a
// single append-only file.
//
// A framed file is a concatenation of records, each encoded as a
// 4-byte big-endian length followed by that many payload bytes. The
// package makes no attempt to interpret payloads — to the disk buffer
// they are opaque serialized telemetry batches.
//
// [Writer] appends frames with a buffered writer that is flushed
// before Append returns, so a process crash can lose at most the
// frame being written at that instant. [Reader] scans frames
// sequentially from offset zero. A truncated trailing frame — the
// expected shape of a file that was being appended to at the moment
// of a crash — ends iteration cleanly rather than producing an
// error; Reader.Truncated reports that it happened.
//
// This package has no dependencies on other diskbuffer packages.
package frame
