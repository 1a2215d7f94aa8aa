// Package logging wraps slog with kwmatch field names and events.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger wraps slog.Logger with kwmatch-specific helpers.
type Logger struct {
	*slog.Logger
}

// New wraps handler. A nil handler discards everything.
func New(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.DiscardHandler
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewText creates a Logger writing human-readable text to w.
func NewText(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSON creates a Logger writing one JSON object per record to w.
func NewJSON(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Noop returns a Logger that discards all output.
func Noop() *Logger {
	return New(nil)
}

// ParseFormat builds a Logger for the --log-format flag value.
func ParseFormat(w io.Writer, format string, level slog.Level) (*Logger, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return NewText(w, level), nil
	case "json":
		return NewJSON(w, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (expected text or json)", format)
	}
}

// With returns a Logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithDictionary tags records with a dictionary ID.
func (l *Logger) WithDictionary(id string) *Logger {
	return l.With("dictionary", id)
}

// WithSession tags records with a stream session ID.
func (l *Logger) WithSession(id string) *Logger {
	return l.With("session", id)
}

// LogBuild logs construction of an automaton.
func (l *Logger) LogBuild(ctx context.Context, keywords, nodes int) {
	l.InfoContext(ctx, "automaton built",
		"keywords", keywords,
		"nodes", nodes,
	)
}

// LogMutation logs a single add or delete.
func (l *Logger) LogMutation(ctx context.Context, op, keyword string, changed bool, generation uint64) {
	if !changed {
		l.DebugContext(ctx, op+" was a no-op",
			"keyword", keyword,
		)
		return
	}
	l.DebugContext(ctx, op+" applied",
		"keyword", keyword,
		"generation", generation,
	)
}

// LogScan logs the outcome of scanning one blob.
func (l *Logger) LogScan(ctx context.Context, source string, size, hits int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scan failed",
			"source", source,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "scan completed",
		"source", source,
		"bytes", size,
		"hits", hits,
	)
}

// LogSession logs a stream session lifecycle event.
func (l *Logger) LogSession(ctx context.Context, event string, offset, hits int) {
	l.DebugContext(ctx, "session "+event,
		"offset", offset,
		"hits", hits,
	)
}
