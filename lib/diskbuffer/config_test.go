// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diskbuffer

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{RootDirectory: "/tmp/x"}.withDefaults()

	if cfg.MaxFileSizeBytes != DefaultMaxFileSizeBytes {
		t.Fatalf("MaxFileSizeBytes = %d", cfg.MaxFileSizeBytes)
	}
	if cfg.MaxFolderSizeBytes != DefaultMaxFolderSizeBytes {
		t.Fatalf("MaxFolderSizeBytes = %d", cfg.MaxFolderSizeBytes)
	}
	if cfg.MaxFileAgeForWrite != DefaultMaxFileAgeForWrite {
		t.Fatalf("MaxFileAgeForWrite = %v", cfg.MaxFileAgeForWrite)
	}
	if cfg.MinFileAgeForRead != DefaultMinFileAgeForRead {
		t.Fatalf("MinFileAgeForRead = %v", cfg.MinFileAgeForRead)
	}
	if cfg.MaxFileAgeForRead != DefaultMaxFileAgeForRead {
		t.Fatalf("MaxFileAgeForRead = %v", cfg.MaxFileAgeForRead)
	}
	if cfg.Clock == nil || cfg.Logger == nil {
		t.Fatal("Clock/Logger defaults not applied")
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	valid := Config{
		RootDirectory:      "/tmp/x",
		MaxFileSizeBytes:   1024,
		MaxFolderSizeBytes: 4096,
		MaxFileAgeForWrite: 5 * time.Second,
		MinFileAgeForRead:  6 * time.Second,
		MaxFileAgeForRead:  time.Hour,
	}.withDefaults()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty root", func(c *Config) { c.RootDirectory = "" }},
		{"negative file size", func(c *Config) { c.MaxFileSizeBytes = -1 }},
		{"negative folder size", func(c *Config) { c.MaxFolderSizeBytes = -1 }},
		{"folder smaller than file", func(c *Config) { c.MaxFolderSizeBytes = 512 }},
		{"negative write age", func(c *Config) { c.MaxFileAgeForWrite = -time.Second }},
		{"read age equals write age", func(c *Config) { c.MinFileAgeForRead = c.MaxFileAgeForWrite }},
		{"read age below write age", func(c *Config) { c.MinFileAgeForRead = c.MaxFileAgeForWrite - time.Millisecond }},
		{"retention below min read age", func(c *Config) { c.MaxFileAgeForRead = c.MinFileAgeForRead }},
	}

	if err := valid.validate(); err != nil {
		t.Fatalf("baseline config invalid: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			if err := cfg.validate(); err == nil {
				t.Fatal("validation passed")
			}
		})
	}
}

// An invalid configuration must fail before any directory or file is
// created.
func TestInvalidConfigCreatesNothing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "buffer-root")
	_, err := Open(SignalTraces, Config{
		RootDirectory:      root,
		MaxFileAgeForWrite: 10 * time.Second,
		MinFileAgeForRead:  5 * time.Second, // violates the invariant
	})
	if err == nil {
		t.Fatal("Open accepted an invalid configuration")
	}
	if _, statErr := os.Stat(root); !os.IsNotExist(statErr) {
		t.Fatalf("root directory was created despite invalid config: %v", statErr)
	}
}

func TestOpenRejectsBadSignal(t *testing.T) {
	for _, signal := range []Signal{"", "Traces", "tr/aces", "../escape", "a b"} {
		if _, err := Open(signal, Config{RootDirectory: t.TempDir()}); err == nil {
			t.Fatalf("Open accepted signal %q", signal)
		}
	}
}

func TestOpenCreatesSignalSubdirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "buffer-root")
	storage, err := Open(SignalMetrics, Config{RootDirectory: root})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	info, err := os.Stat(filepath.Join(root, "metrics"))
	if err != nil {
		t.Fatalf("signal subdirectory: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("signal path is not a directory")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buffer.yaml")
	content := `
root_directory: /var/lib/telemetry/buffer
max_file_size_bytes: 2097152
max_folder_size_bytes: 20971520
max_file_age_for_write: 10s
min_file_age_for_read: 12s
max_file_age_for_read: 6h
compression: zstd
debug: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RootDirectory != "/var/lib/telemetry/buffer" {
		t.Fatalf("RootDirectory = %q", cfg.RootDirectory)
	}
	if cfg.MaxFileSizeBytes != 2097152 || cfg.MaxFolderSizeBytes != 20971520 {
		t.Fatalf("sizes = %d / %d", cfg.MaxFileSizeBytes, cfg.MaxFolderSizeBytes)
	}
	if cfg.MaxFileAgeForWrite != 10*time.Second || cfg.MinFileAgeForRead != 12*time.Second || cfg.MaxFileAgeForRead != 6*time.Hour {
		t.Fatalf("ages = %v / %v / %v", cfg.MaxFileAgeForWrite, cfg.MinFileAgeForRead, cfg.MaxFileAgeForRead)
	}
	if cfg.Compression != CompressionZstd {
		t.Fatalf("Compression = %v", cfg.Compression)
	}
	if !cfg.Debug {
		t.Fatal("Debug not set")
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buffer.yaml")
	if err := os.WriteFile(path, []byte("root_directory: /data/buffer\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg = cfg.withDefaults()
	if cfg.MaxFileAgeForWrite != DefaultMaxFileAgeForWrite {
		t.Fatalf("MaxFileAgeForWrite = %v", cfg.MaxFileAgeForWrite)
	}
	if cfg.Compression != CompressionNone {
		t.Fatalf("Compression = %v", cfg.Compression)
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buffer.yaml")
	if err := os.WriteFile(path, []byte("min_file_age_for_read: quickly\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("bad duration accepted")
	}
}
