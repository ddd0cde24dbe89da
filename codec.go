package linesort

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	sorterrors "github.com/tamirms/linesort/errors"
)

// Compression selects the codec used for sorted unit files.
type Compression uint8

const (
	// CompressionNone stores units as plain text.
	CompressionNone Compression = 0
	// CompressionLZ4 stores units as LZ4 frames (fast, modest ratio).
	CompressionLZ4 Compression = 1
	// CompressionZstd stores units as zstd frames (better ratio, more CPU).
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression maps a codec name ("none", "lz4", "zstd") to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("%w: %q", sorterrors.ErrUnknownCompression, name)
	}
}

func (c Compression) valid() bool {
	return c <= CompressionZstd
}

// extension is appended to unit file names so leftovers are recognizable.
func (c Compression) extension() string {
	switch c {
	case CompressionLZ4:
		return ".txt.lz4"
	case CompressionZstd:
		return ".txt.zst"
	default:
		return ".txt"
	}
}

// newWriter wraps w with the codec. Close flushes the codec but never closes w.
func (c Compression) newWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		// One encoder per sort task; concurrency inside the encoder would
		// multiply goroutines by the worker count.
		return zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1))
	default:
		return nil, sorterrors.ErrUnknownCompression
	}
}

// newReader wraps r with the codec. Close releases codec state but never closes r.
func (c Compression) newReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionZstd:
		// The merger holds one decoder per live cursor.
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{dec}, nil
	default:
		return nil, sorterrors.ErrUnknownCompression
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
