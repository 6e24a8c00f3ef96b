// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diskbuffer

import (
	"bytes"
	"testing"
)

func TestCompressionRoundTrip(t *testing.T) {
	// Repetitive data so both codecs actually shrink it.
	batch := bytes.Repeat([]byte("span span span metric metric "), 200)

	for _, mode := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(mode.String(), func(t *testing.T) {
			payload, err := encodePayload(batch, mode)
			if err != nil {
				t.Fatalf("encodePayload: %v", err)
			}
			if mode != CompressionNone && len(payload) >= len(batch) {
				t.Fatalf("compressible data did not shrink: %d >= %d", len(payload), len(batch))
			}

			got, err := decodePayload(payload, mode)
			if err != nil {
				t.Fatalf("decodePayload: %v", err)
			}
			if !bytes.Equal(got, batch) {
				t.Fatal("round trip mismatch")
			}
		})
	}
}

func TestCompressionNonePassesThrough(t *testing.T) {
	batch := []byte{0x01, 0x02, 0x03}
	payload, err := encodePayload(batch, CompressionNone)
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}
	if !bytes.Equal(payload, batch) {
		t.Fatalf("none mode altered the batch: %v", payload)
	}
}

func TestIncompressibleFallsBackToRaw(t *testing.T) {
	// Three bytes cannot shrink under any codec; the payload must be
	// stored under the none tag and still round-trip.
	batch := []byte{0xDE, 0xAD, 0xBF}

	for _, mode := range []Compression{CompressionLZ4, CompressionZstd} {
		t.Run(mode.String(), func(t *testing.T) {
			payload, err := encodePayload(batch, mode)
			if err != nil {
				t.Fatalf("encodePayload: %v", err)
			}
			if Compression(payload[0]) != CompressionNone {
				t.Fatalf("tag = %v, want none fallback", Compression(payload[0]))
			}

			got, err := decodePayload(payload, mode)
			if err != nil {
				t.Fatalf("decodePayload: %v", err)
			}
			if !bytes.Equal(got, batch) {
				t.Fatal("round trip mismatch")
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := decodePayload([]byte{1, 2}, CompressionLZ4); err == nil {
		t.Fatal("short payload accepted")
	}
	// Unknown tag byte.
	bad := []byte{0xFF, 0, 0, 0, 4, 1, 2, 3, 4}
	if _, err := decodePayload(bad, CompressionZstd); err == nil {
		t.Fatal("unknown tag accepted")
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		mode, err := ParseCompression(name)
		if err != nil {
			t.Fatalf("ParseCompression(%q): %v", name, err)
		}
		if mode.String() != name {
			t.Fatalf("ParseCompression(%q).String() = %q", name, mode.String())
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Fatal("unknown mode accepted")
	}
}
