package matcher

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/praetorian-inc/kwmatch/pkg/automaton"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// DefaultReadSize is the chunk size used when reading from an io.Reader.
const DefaultReadSize = 64 * 1024

// ReaderOption configures ScanReader and ReplaceReader.
type ReaderOption func(*readerConfig)

type readerConfig struct {
	chunkSize int
	mode      Mode
}

// WithChunkSize sets how many bytes are read per chunk.
func WithChunkSize(n int) ReaderOption {
	return func(c *readerConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithMode selects which hits ScanReader reports. The default is ModeGreedy.
func WithMode(m Mode) ReaderOption {
	return func(c *readerConfig) { c.mode = m }
}

func newReaderConfig(opts []ReaderOption) readerConfig {
	cfg := readerConfig{chunkSize: DefaultReadSize, mode: ModeGreedy}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// ScanReader streams r through a and calls fn for each hit as soon as it
// is final. It stops at the first error from r or fn, or when ctx is done.
func ScanReader(ctx context.Context, a *automaton.Automaton, r io.Reader, fn func(types.Hit) error, opts ...ReaderOption) error {
	cfg := newReaderConfig(opts)
	s := NewStream(a, cfg.mode)
	deliver := func(hits []types.Hit) error {
		for _, h := range hits {
			if err := fn(h); err != nil {
				return err
			}
		}
		return nil
	}
	if err := pump(ctx, r, cfg.chunkSize, func(chunk []byte) error {
		return deliver(s.Push(chunk))
	}); err != nil {
		return err
	}
	return deliver(s.Close())
}

// ReplaceReader copies r to w, replacing each greedy hit with fn(keyword).
// It returns the number of bytes written.
func ReplaceReader(ctx context.Context, a *automaton.Automaton, w io.Writer, r io.Reader, fn ReplaceFunc, opts ...ReaderOption) (int64, error) {
	cfg := newReaderConfig(opts)
	rep := NewReplacer(a, fn)
	var written int64
	write := func(pieces []string) error {
		for _, p := range pieces {
			n, err := io.WriteString(w, p)
			written += int64(n)
			if err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		}
		return nil
	}
	if err := pump(ctx, r, cfg.chunkSize, func(chunk []byte) error {
		return write(rep.Push(chunk))
	}); err != nil {
		return written, err
	}
	return written, write(rep.Close())
}

// pump reads r in chunks of size bytes and hands each to push. The buffer
// is reused, so push must not retain the chunk.
func pump(ctx context.Context, r io.Reader, size int, push func([]byte) error) error {
	buf := make([]byte, size)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if perr := push(buf[:n]); perr != nil {
				return perr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
	}
}
