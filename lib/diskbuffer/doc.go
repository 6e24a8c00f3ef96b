// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package diskbuffer implements a disk-buffered signal queue:
// serialized telemetry batches are persisted to local files while the
// downstream shipper is unreachable or slow, and replayed oldest-first
// once shipping becomes possible again.
//
// It is the durable counterpart of the telemetry relay's in-memory
// bounded FIFO. Where the relay drops the oldest batches when memory
// pressure builds, this package spills them to disk, bounded by a
// folder size cap and a retention ceiling. Bounded retention is a
// deliberate trade-off: under sustained backpressure the buffer
// prefers staying within its disk budget over keeping every batch.
//
// # Model
//
// One [Storage] instance owns one folder, one folder per signal type
// (traces, metrics, logs — independent, non-interacting). A folder
// holds files named by creation time so that a lexicographic
// directory listing is also the chronological one. Exactly one file
// per folder is "active" (accepting appends) at any time; a file
// rotates out of the active role when it reaches the size cap or the
// write-age cap. Each file is a concatenation of length-prefixed
// frames (see lib/frame), one frame per batch.
//
// # Write / read coordination
//
// No lock coordinates the writer and the reader. Correctness rests on
// the configuration invariant MinFileAgeForRead > MaxFileAgeForWrite:
// by the time a file is old enough to be offered for reading, it is
// provably past the age at which it could still be appended to.
// Validation enforces the invariant before any file I/O happens.
//
// # Delivery semantics
//
// [Storage.Consume] replays the oldest read-eligible file through a
// caller-supplied handler, one batch at a time, and deletes the file
// only when every batch was reported [Delivered]. Any other outcome —
// [Retryable], [Fatal], or context cancellation — preserves the file
// for a later pass, replaying it from the start. Delivery is
// therefore at-least-once, never at-most-once: consumers must be
// idempotent or tolerate duplicates.
//
// Files deleted by the retention policy (folder size eviction, age
// expiry) are data-loss events, not errors: they are counted in
// [Storage.Stats], logged, and appended to a per-signal drop journal
// at the root directory for post-hoc inspection.
package diskbuffer
