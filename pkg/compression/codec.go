// Package compression provides streaming compression support for trace event
// files and caches. Trace sessions routinely hold gigabytes of NDJSON, so
// files are usually stored compressed and decompressed on the fly while
// reading.
//
// Supported algorithms:
//   - Zstd: best compression ratio, good speed (default for caches)
//   - S2: fastest, moderate compression
//   - LZ4: extremely fast, decent compression
//   - Gzip: wide compatibility
//
// The algorithm for a file is normally detected from its extension
// (.zst, .gz, .lz4, .s2) via DetectByExtension.
package compression

import (
	"compress/gzip"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// LZ4 represents lz4 compression
	LZ4 Algorithm = "lz4"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Best maximizes compression ratio.
	Best Level = 9
)

// ParseAlgorithm converts a configuration string into an Algorithm.
// The empty string means None.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", None:
		return None, nil
	case Gzip, Zstd, LZ4, S2:
		return Algorithm(name), nil
	default:
		return None, errors.Newf(errors.ErrorTypeValidation, "unsupported compression algorithm: %s", name)
	}
}

var extensions = map[string]Algorithm{
	".gz":  Gzip,
	".zst": Zstd,
	".lz4": LZ4,
	".s2":  S2,
}

// DetectByExtension reports the algorithm implied by a file name. The second
// return value is false when the extension names no known compression, in
// which case the file is treated as uncompressed.
func DetectByExtension(path string) (Algorithm, bool) {
	for ext, algo := range extensions {
		if len(path) > len(ext) && path[len(path)-len(ext):] == ext {
			return algo, true
		}
	}
	return None, false
}

// Extension returns the canonical file extension for an algorithm, or the
// empty string for None.
func (a Algorithm) Extension() string {
	switch a {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	case S2:
		return ".s2"
	default:
		return ""
	}
}

// NewReader wraps r with a decompressor for the given algorithm. The caller
// must Close the returned reader; closing it does not close r.
func NewReader(r io.Reader, algo Algorithm) (io.ReadCloser, error) {
	switch algo {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open gzip stream")
		}
		return gr, nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open zstd stream")
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported compression algorithm: %s", algo)
	}
}

// NewWriter wraps w with a compressor for the given algorithm. The caller
// must Close the returned writer to flush trailing blocks; closing it does
// not close w.
func NewWriter(w io.Writer, algo Algorithm, level Level) (io.WriteCloser, error) {
	switch algo {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		gw, err := gzip.NewWriterLevel(w, mapGzipLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to create gzip writer")
		}
		return gw, nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(level)))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to create zstd writer")
		}
		return enc, nil
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to configure lz4 writer")
		}
		return lw, nil
	case S2:
		if level == Best {
			return s2.NewWriter(w, s2.WriterBetterCompression()), nil
		}
		return s2.NewWriter(w), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported compression algorithm: %s", algo)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}
