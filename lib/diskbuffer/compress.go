// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diskbuffer

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the codec applied to batches before they are
// framed to disk. With compression enabled, the frame payload is
// [tag:1][uncompressed-length:uint32 BE][compressed bytes]; with
// CompressionNone, the payload is the raw batch, byte for byte. The
// tag makes the incompressible-data fallback self-describing: a batch
// that does not shrink is stored raw under the none tag even when a
// codec is configured.
type Compression uint8

const (
	// CompressionNone stores batches uncompressed. This is the
	// default and the only mode whose on-disk payloads equal the
	// caller's bytes exactly.
	CompressionNone Compression = 0

	// CompressionLZ4 applies LZ4 block compression. Fast default for
	// batches of unknown shape.
	CompressionLZ4 Compression = 1

	// CompressionZstd applies zstd at the default level. Better
	// ratios for text-heavy batches (log records, JSON-encoded
	// attributes) at more CPU cost.
	CompressionZstd Compression = 2
)

// String returns the human-readable name of a compression mode.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression mode from its string
// representation.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression mode: %q", name)
	}
}

// compressedHeaderSize is the tag byte plus the uncompressed length.
const compressedHeaderSize = 1 + 4

// errIncompressible signals that compressing would not shrink the
// data; the caller stores it raw under the none tag instead.
var errIncompressible = errors.New("data is incompressible")

// zstdEncoder and zstdDecoder are reused across calls to avoid
// repeated initialization overhead. Both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("diskbuffer: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("diskbuffer: zstd decoder initialization failed: " + err.Error())
	}
}

// encodePayload converts a caller batch into a frame payload under
// the given compression mode.
func encodePayload(batch []byte, mode Compression) ([]byte, error) {
	if mode == CompressionNone {
		return batch, nil
	}

	var compressed []byte
	var err error
	switch mode {
	case CompressionLZ4:
		compressed, err = compressLZ4(batch)
	case CompressionZstd:
		compressed, err = compressZstd(batch)
	default:
		return nil, fmt.Errorf("diskbuffer: unsupported compression mode: %d", mode)
	}
	if errors.Is(err, errIncompressible) {
		return encodeTagged(CompressionNone, batch, batch), nil
	}
	if err != nil {
		return nil, err
	}
	return encodeTagged(mode, batch, compressed), nil
}

// encodeTagged builds [tag][uncompressed-length][data].
func encodeTagged(tag Compression, original, data []byte) []byte {
	payload := make([]byte, compressedHeaderSize+len(data))
	payload[0] = byte(tag)
	binary.BigEndian.PutUint32(payload[1:compressedHeaderSize], uint32(len(original)))
	copy(payload[compressedHeaderSize:], data)
	return payload
}

// decodePayload converts a frame payload back into the caller batch.
// The mode is the storage's configured mode: under CompressionNone
// payloads are raw and returned as-is; otherwise every payload starts
// with a tag byte naming the codec that was actually used (which may
// be the none tag for incompressible batches).
func decodePayload(payload []byte, mode Compression) ([]byte, error) {
	if mode == CompressionNone {
		return payload, nil
	}

	if len(payload) < compressedHeaderSize {
		return nil, fmt.Errorf("diskbuffer: compressed payload too short: %d bytes", len(payload))
	}
	tag := Compression(payload[0])
	uncompressedSize := int(binary.BigEndian.Uint32(payload[1:compressedHeaderSize]))
	data := payload[compressedHeaderSize:]

	switch tag {
	case CompressionNone:
		if len(data) != uncompressedSize {
			return nil, fmt.Errorf("diskbuffer: raw payload: size %d does not match recorded %d",
				len(data), uncompressedSize)
		}
		return data, nil
	case CompressionLZ4:
		return decompressLZ4(data, uncompressedSize)
	case CompressionZstd:
		return decompressZstd(data, uncompressedSize)
	default:
		return nil, fmt.Errorf("diskbuffer: unknown compression tag: %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	// CompressBlock returns 0 when it determines the data is
	// incompressible. A result no smaller than the input is not
	// worth storing compressed either.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}

	return destination[:written], nil
}

func decompressLZ4(compressed []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, 0, uncompressedSize)
	result, err := zstdDecoder.DecodeAll(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}
