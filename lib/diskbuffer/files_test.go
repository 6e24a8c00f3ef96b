// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diskbuffer

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func TestFileNameRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	name := formatFileName(created, 0)
	if len(name) != fileNameTimeWidth {
		t.Fatalf("bare name %q has length %d", name, len(name))
	}
	got, ok := parseFileName(name)
	if !ok {
		t.Fatalf("parseFileName(%q) failed", name)
	}
	if !got.Equal(created) {
		t.Fatalf("got %v, want %v", got, created)
	}

	suffixed := formatFileName(created, 3)
	got, ok = parseFileName(suffixed)
	if !ok {
		t.Fatalf("parseFileName(%q) failed", suffixed)
	}
	if !got.Equal(created) {
		t.Fatalf("suffixed: got %v, want %v", got, created)
	}
}

func TestFileNameRejectsStrays(t *testing.T) {
	for _, name := range []string{
		"",
		"notes.txt",
		"00012345",                // too short
		"000123456789012x",       // non-digit in timestamp
		"0001234567890123x01",    // bad suffix separator
		"0001234567890123-",      // empty suffix
		"0001234567890123-1a",    // non-digit suffix
		"0001234567890123.swp",   // editor dropping
		"traces.droplog",         // journal must never be in-folder, but be safe
	} {
		if _, ok := parseFileName(name); ok {
			t.Fatalf("parseFileName(%q) accepted", name)
		}
	}
}

// Lexicographic order of generated names must equal creation order,
// including collision suffixes within one millisecond.
func TestFileNameOrderingIsLexicographic(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	inOrder := []string{
		formatFileName(base, 0),
		formatFileName(base, 1),
		formatFileName(base, 2),
		formatFileName(base.Add(time.Millisecond), 0),
		formatFileName(base.Add(time.Second), 0),
		formatFileName(base.Add(time.Hour), 0),
	}

	sorted := append([]string(nil), inOrder...)
	sort.Strings(sorted)
	for i := range inOrder {
		if inOrder[i] != sorted[i] {
			t.Fatalf("creation order %v != lexicographic order %v", inOrder, sorted)
		}
	}
}

func TestListBufferFilesSkipsStrays(t *testing.T) {
	dir := t.TempDir()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	wantName := formatFileName(created, 0)
	if err := os.WriteFile(filepath.Join(dir, wantName), []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("not a buffer file"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "0001234567890123"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	files, err := ListBufferFiles(dir)
	if err != nil {
		t.Fatalf("ListBufferFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if files[0].Name != wantName || files[0].Size != 4 {
		t.Fatalf("file = %+v", files[0])
	}
	if !files[0].CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %v, want %v", files[0].CreatedAt, created)
	}
}
