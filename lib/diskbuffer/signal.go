// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diskbuffer

import (
	"fmt"
	"path/filepath"
)

// Signal identifies one independent buffered stream. Each signal gets
// its own subdirectory under the root directory and its own drop
// journal; storages for different signals never interact.
type Signal string

// The standard telemetry signal types. Custom signal names are
// allowed for other record streams as long as they are valid folder
// names per Validate.
const (
	SignalTraces  Signal = "traces"
	SignalMetrics Signal = "metrics"
	SignalLogs    Signal = "logs"
)

// Validate checks that the signal is usable as a directory name. The
// character set is restricted to lowercase alphanumerics, '_' and '-'
// so that signal names are portable and can never escape the root
// directory.
func (s Signal) Validate() error {
	if s == "" {
		return fmt.Errorf("signal name is empty")
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return fmt.Errorf("signal name %q contains invalid character %q", s, r)
		}
	}
	return nil
}

// SignalDir returns the folder holding a signal's buffer files.
func SignalDir(rootDirectory string, signal Signal) string {
	return filepath.Join(rootDirectory, string(signal))
}
