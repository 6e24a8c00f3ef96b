// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// diskbuffer-inspect is a read-only maintenance tool for disk buffer
// roots. It lists the buffered files per signal — creation time, age,
// size, batch count, whether the file ends in a torn frame — and can
// print the drop journal that records every evicted, expired, or
// corrupt batch.
//
// The tool never opens a write handle and never deletes anything, so
// it is safe to run against the buffer root of a live process. Batch
// payloads are opaque at this level; frames are counted, not decoded.
//
// Usage:
//
//	diskbuffer-inspect --root /var/lib/telemetry/buffer
//	diskbuffer-inspect --root /var/lib/telemetry/buffer --signal traces --fingerprint
//	diskbuffer-inspect --root /var/lib/telemetry/buffer --drops --json
package main
