package slogutil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelSilent is above every standard level.
const LevelSilent = slog.Level(100)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
	"silent":  LevelSilent,
	"off":     LevelSilent,
}

// NewLogger creates a logger writing the unref format to w.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewHandler(w, &slog.HandlerOptions{Level: level}))
}

func NewDiscardLogger() *slog.Logger {
	return NewLogger(io.Discard, LevelSilent)
}

// LevelFromString maps a level name, case-insensitively, and falls back to
// info for names ValidLevel rejects.
func LevelFromString(s string) slog.Level {
	if level, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return level
	}
	return slog.LevelInfo
}

func ValidLevel(s string) bool {
	_, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// LevelFromVerbosity maps -v counts to a console level: none is warn, one
// is info, more is debug. quiet silences the console.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	switch {
	case quiet:
		return LevelSilent
	case verbosity <= 0:
		return slog.LevelWarn
	case verbosity == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Options describes where a command logs.
type Options struct {
	// Level applies to Stderr.
	Level slog.Level
	// Stderr receives console logs. Nil means os.Stderr.
	Stderr io.Writer

	// File, when set, additionally receives logs at FileLevel.
	File      string
	FileLevel slog.Level
	// MaxSize rotates File once it exceeds the size ("10MB"). Empty
	// disables rotation.
	MaxSize    string
	MaxBackups int
}

// Setup builds the command logger. The returned closer releases the log
// file and is never nil.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	console := NewHandler(stderr, &slog.HandlerOptions{Level: opts.Level})
	if opts.File == "" {
		return slog.New(console), nopCloser{}, nil
	}

	w, err := openLogFile(opts.File, opts.MaxSize, opts.MaxBackups)
	if err != nil {
		return nil, nil, err
	}
	file := NewHandler(w, &slog.HandlerOptions{Level: opts.FileLevel})
	return NewTeeLogger(console, file), w, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openLogFile(path, maxSize string, maxBackups int) (io.WriteCloser, error) {
	size, err := ParseSize(maxSize)
	if err != nil {
		return nil, err
	}
	if size > 0 {
		return OpenRotatingFile(path, size, maxBackups)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// TeeHandler fans records out to several handlers, each applying its own
// level.
type TeeHandler []slog.Handler

func NewTeeHandler(handlers ...slog.Handler) TeeHandler {
	return TeeHandler(handlers)
}

func NewTeeLogger(handlers ...slog.Handler) *slog.Logger {
	return slog.New(NewTeeHandler(handlers...))
}

func (t TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t TeeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t TeeHandler) each(fn func(slog.Handler) slog.Handler) TeeHandler {
	out := make(TeeHandler, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}
	return out
}
