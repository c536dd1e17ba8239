// File: internal/logger/logger.go
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	Level  string
	Format string
	// When set, records are written to this file as well as to the console
	File  string
	Debug bool
}

// NewLogger builds the application logger and installs it as the slog default.
// Console output goes to stderr so stdout carries only command output.
// The returned close function releases the log file, if any
func NewLogger(opts Options) (*slog.Logger, func() error, error) {
	return newLogger(os.Stderr, opts)
}

func newLogger(console io.Writer, opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.Debug {
		level = slog.LevelDebug
	}

	handler, err := newHandler(console, opts.Format, level)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening log file: %w", err)
		}
		// The log file always keeps debug detail, whatever the console level
		fileHandler, err := newHandler(f, opts.Format, slog.LevelDebug)
		if err != nil {
			_ = f.Close()
			return nil, nil, err
		}
		handler = &fanoutHandler{console: handler, file: fileHandler}
		closeFn = f.Close
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

func newHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	handlerOpts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.NewTextHandler(w, handlerOpts), nil
	case "json":
		return slog.NewJSONHandler(w, handlerOpts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// WithMinLevel returns a logger whose console output drops records below min, used while a live
// display owns the terminal. A log file attached by NewLogger keeps receiving every record
func WithMinLevel(l *slog.Logger, min slog.Level) *slog.Logger {
	if fan, ok := l.Handler().(*fanoutHandler); ok {
		return slog.New(&fanoutHandler{console: &levelFilter{next: fan.console, min: min}, file: fan.file})
	}
	return slog.New(&levelFilter{next: l.Handler(), min: min})
}

type levelFilter struct {
	next slog.Handler
	min  slog.Level
}

func (h *levelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.next.Enabled(ctx, level)
}

func (h *levelFilter) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h *levelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelFilter{next: h.next.WithAttrs(attrs), min: h.min}
}

func (h *levelFilter) WithGroup(name string) slog.Handler {
	return &levelFilter{next: h.next.WithGroup(name), min: h.min}
}

// fanoutHandler sends each record to the console and the log file, each with its own level
type fanoutHandler struct {
	console slog.Handler
	file    slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	if h.console.Enabled(ctx, r.Level) {
		errs = append(errs, h.console.Handle(ctx, r.Clone()))
	}
	if h.file.Enabled(ctx, r.Level) {
		errs = append(errs, h.file.Handle(ctx, r.Clone()))
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &fanoutHandler{console: h.console.WithAttrs(attrs), file: h.file.WithAttrs(attrs)}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	return &fanoutHandler{console: h.console.WithGroup(name), file: h.file.WithGroup(name)}
}
