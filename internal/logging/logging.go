// Package logging builds the daemon and CLI's shared slog.Logger,
// rotating the daemon's file output through lumberjack so a
// long-lived process never grows an unbounded log file.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger. Path empty means log to stderr only
// (the CLI's mode); a non-empty path also rotates through lumberjack
// (the daemon's mode).
type Options struct {
	Path       string
	Level      slog.Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	JSON       bool
}

// DefaultOptions is tuned for the daemon's long-running log file.
func DefaultOptions(path string) Options {
	return Options{
		Path:       path,
		Level:      slog.LevelInfo,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		JSON:       true,
	}
}

// New builds a logger per opts. Callers install it with slog.SetDefault
// when it should back the package-level slog.* calls too.
func New(opts Options) *slog.Logger {
	var w io.Writer = os.Stderr
	if opts.Path != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}
