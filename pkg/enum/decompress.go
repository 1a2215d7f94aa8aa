package enum

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// DefaultMaxDecompressed caps inflated output to guard against bombs.
const DefaultMaxDecompressed = 256 << 20

// IsCompressed reports whether name carries a supported compression suffix.
func IsCompressed(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip", ".zst", ".zstd":
		return true
	}
	return false
}

// StripCompressionExt removes a compression suffix: "a.txt.gz" -> "a.txt".
func StripCompressionExt(name string) string {
	if IsCompressed(name) {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}

// NewDecompressor wraps r with a decoder chosen by name's suffix. Names
// without a compression suffix pass through unchanged.
func NewDecompressor(name string, r io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return zr, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return io.NopCloser(r), nil
	}
}

// Decompress inflates content according to name's suffix, reading at most
// limit bytes of output (0 means DefaultMaxDecompressed).
func Decompress(name string, content []byte, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxDecompressed
	}
	rc, err := NewDecompressor(name, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	out, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", name, err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("decompressing %s: output exceeds %d bytes", name, limit)
	}
	return out, nil
}
