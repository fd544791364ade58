// Package log builds the slog.Logger used by jctool and the raw report logger.
//
// Command output goes to stdout, so console logs are written to stderr. A log
// file, when configured, receives the same records at the configured level.
package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace is below Debug and enables raw report dumps.
const LevelTrace slog.Level = -8

// ParseLevel maps a level name to a slog level. Unknown names yield Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// SetupLogger builds the process logger. format is "text" or "json" and only
// affects the console handler; log files are always text.
func SetupLogger(level, format, file string) (*slog.Logger, []io.Closer, error) {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: renameTrace}

	var console slog.Handler
	if strings.EqualFold(format, "json") {
		console = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		console = slog.NewTextHandler(os.Stderr, opts)
	}
	handlers := fanout{console}

	var closers []io.Closer
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, f)
		handlers = append(handlers, slog.NewTextHandler(f, opts))
	}
	return slog.New(handlers), closers, nil
}

func renameTrace(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
