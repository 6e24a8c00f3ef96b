// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock parameter instead of calling time.Now
// directly. In production, Real() provides the standard library
// behavior. In tests, Fake() provides a deterministic clock that
// advances only when Advance or Set is called.
//
// The disk buffer's rotation, visibility, and retention rules are all
// functions of file age. Injecting the clock is what makes those rules
// testable without sleeping: a test writes a batch, advances the fake
// clock past the read-visibility threshold, and immediately observes
// the file become consumable.
//
// # Wiring Pattern
//
// Add a Clock field to structs that use time:
//
//	type Folder struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	f := &Folder{clock: clock.Real()}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	f := &Folder{clock: c}
//	c.Advance(6 * time.Second)
package clock
