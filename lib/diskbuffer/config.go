// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diskbuffer

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/diskbuffer/lib/clock"
)

// Default limits. The defaults follow the sizing of the relay's
// in-memory buffer scaled for disk: small enough that a misbehaving
// shipper cannot fill a machine, large enough to ride out hours of
// downstream unavailability.
const (
	// DefaultMaxFileSizeBytes caps a single buffer file at 1 MiB.
	DefaultMaxFileSizeBytes = 1 << 20

	// DefaultMaxFolderSizeBytes caps a signal folder at 10 MiB.
	DefaultMaxFolderSizeBytes = 10 << 20

	// DefaultMaxFileAgeForWrite closes a file for appends after 30
	// seconds regardless of size.
	DefaultMaxFileAgeForWrite = 30 * time.Second

	// DefaultMinFileAgeForRead makes a file read-eligible 33 seconds
	// after creation: the write-age cap plus a safety margin, which
	// preserves the invariant that a readable file can no longer be
	// appended to.
	DefaultMinFileAgeForRead = 33 * time.Second

	// DefaultMaxFileAgeForRead is the hard retention ceiling: files
	// older than 18 hours are deleted whether or not they were ever
	// read.
	DefaultMaxFileAgeForRead = 18 * time.Hour
)

// Config holds the parameters governing rotation, retention, and
// size limits for one Storage instance. The zero value of every
// field gets a usable default from Open; a Config is immutable once
// the Storage is opened.
type Config struct {
	// RootDirectory is the base directory for buffered data. Each
	// signal gets a subdirectory inside it. Created if absent.
	// Required.
	RootDirectory string

	// MaxFileSizeBytes closes the active file for appends once it
	// reaches this size. Defaults to DefaultMaxFileSizeBytes.
	MaxFileSizeBytes int64

	// MaxFolderSizeBytes bounds the total size of a signal folder.
	// When a write pushes the folder past this limit, the oldest
	// files are deleted (eviction). The active file is never
	// evicted, so the folder can exceed the bound by at most one
	// file. Defaults to DefaultMaxFolderSizeBytes.
	MaxFolderSizeBytes int64

	// MaxFileAgeForWrite closes the active file for appends once its
	// age exceeds this, even if it has room left. Defaults to
	// DefaultMaxFileAgeForWrite.
	MaxFileAgeForWrite time.Duration

	// MinFileAgeForRead is the age at which a file becomes
	// read-eligible. Must be strictly greater than MaxFileAgeForWrite
	// — this gap is the sole mechanism keeping the reader from
	// observing a file still being appended to. Defaults to
	// DefaultMinFileAgeForRead.
	MinFileAgeForRead time.Duration

	// MaxFileAgeForRead is the hard retention ceiling. Files older
	// than this are deleted by reclamation even if never read. Must
	// be greater than MinFileAgeForRead. Defaults to
	// DefaultMaxFileAgeForRead.
	MaxFileAgeForRead time.Duration

	// Compression selects the batch compression codec. Batches are
	// compressed before framing on write and decompressed after
	// unframing on consume. CompressionNone (the default) stores
	// batches byte-for-byte as handed in. All storages sharing a
	// folder across process restarts must agree on this setting.
	Compression Compression

	// Debug enables verbose logging of storage decisions (rotation,
	// eviction, finalization).
	Debug bool

	// Clock provides the current time for file stamping and age
	// decisions. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives operational messages. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// withDefaults returns a copy of the config with zero-valued fields
// replaced by defaults.
func (c Config) withDefaults() Config {
	if c.MaxFileSizeBytes == 0 {
		c.MaxFileSizeBytes = DefaultMaxFileSizeBytes
	}
	if c.MaxFolderSizeBytes == 0 {
		c.MaxFolderSizeBytes = DefaultMaxFolderSizeBytes
	}
	if c.MaxFileAgeForWrite == 0 {
		c.MaxFileAgeForWrite = DefaultMaxFileAgeForWrite
	}
	if c.MinFileAgeForRead == 0 {
		c.MinFileAgeForRead = DefaultMinFileAgeForRead
	}
	if c.MaxFileAgeForRead == 0 {
		c.MaxFileAgeForRead = DefaultMaxFileAgeForRead
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// validate checks the bounds after defaults have been applied. It
// runs before any file I/O: an invalid configuration never creates a
// directory or touches a file.
func (c Config) validate() error {
	if c.RootDirectory == "" {
		return fmt.Errorf("diskbuffer: RootDirectory is required")
	}
	if c.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("diskbuffer: MaxFileSizeBytes must be positive, got %d", c.MaxFileSizeBytes)
	}
	if c.MaxFolderSizeBytes <= 0 {
		return fmt.Errorf("diskbuffer: MaxFolderSizeBytes must be positive, got %d", c.MaxFolderSizeBytes)
	}
	if c.MaxFolderSizeBytes < c.MaxFileSizeBytes {
		return fmt.Errorf("diskbuffer: MaxFolderSizeBytes %d is smaller than MaxFileSizeBytes %d",
			c.MaxFolderSizeBytes, c.MaxFileSizeBytes)
	}
	if c.MaxFileAgeForWrite <= 0 {
		return fmt.Errorf("diskbuffer: MaxFileAgeForWrite must be positive, got %v", c.MaxFileAgeForWrite)
	}
	if c.MinFileAgeForRead <= c.MaxFileAgeForWrite {
		return fmt.Errorf("diskbuffer: MinFileAgeForRead %v must be greater than MaxFileAgeForWrite %v",
			c.MinFileAgeForRead, c.MaxFileAgeForWrite)
	}
	if c.MaxFileAgeForRead <= c.MinFileAgeForRead {
		return fmt.Errorf("diskbuffer: MaxFileAgeForRead %v must be greater than MinFileAgeForRead %v",
			c.MaxFileAgeForRead, c.MinFileAgeForRead)
	}
	return nil
}

// fileConfig is the YAML shape of a Config. Durations are strings in
// time.ParseDuration syntax ("30s", "18h") so that config files stay
// readable; sizes are plain byte counts.
type fileConfig struct {
	RootDirectory      string `yaml:"root_directory"`
	MaxFileSizeBytes   int64  `yaml:"max_file_size_bytes"`
	MaxFolderSizeBytes int64  `yaml:"max_folder_size_bytes"`
	MaxFileAgeForWrite string `yaml:"max_file_age_for_write"`
	MinFileAgeForRead  string `yaml:"min_file_age_for_read"`
	MaxFileAgeForRead  string `yaml:"max_file_age_for_read"`
	Compression        string `yaml:"compression"`
	Debug              bool   `yaml:"debug"`
}

// LoadConfig reads a Config from a YAML file. Omitted fields keep
// their zero value and therefore pick up defaults when the Storage is
// opened. Clock and Logger are not configurable from a file; set them
// on the returned Config if the defaults do not suit.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("diskbuffer: reading config %s: %w", path, err)
	}

	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("diskbuffer: parsing config %s: %w", path, err)
	}

	cfg := Config{
		RootDirectory:      raw.RootDirectory,
		MaxFileSizeBytes:   raw.MaxFileSizeBytes,
		MaxFolderSizeBytes: raw.MaxFolderSizeBytes,
		Debug:              raw.Debug,
	}

	if cfg.MaxFileAgeForWrite, err = parseDuration(raw.MaxFileAgeForWrite, "max_file_age_for_write"); err != nil {
		return Config{}, err
	}
	if cfg.MinFileAgeForRead, err = parseDuration(raw.MinFileAgeForRead, "min_file_age_for_read"); err != nil {
		return Config{}, err
	}
	if cfg.MaxFileAgeForRead, err = parseDuration(raw.MaxFileAgeForRead, "max_file_age_for_read"); err != nil {
		return Config{}, err
	}
	if raw.Compression != "" {
		if cfg.Compression, err = ParseCompression(raw.Compression); err != nil {
			return Config{}, fmt.Errorf("diskbuffer: config %s: %w", path, err)
		}
	}

	return cfg, nil
}

// parseDuration parses an optional duration field; empty means unset.
func parseDuration(value, field string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("diskbuffer: config field %s: %w", field, err)
	}
	return d, nil
}
