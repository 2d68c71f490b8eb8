// Package log provides a minimal factory for structured slog loggers.
package log

import (
	"io"
	"log/slog"
	"os"
)

// New creates a [slog.Logger] that writes to stderr at the given level
// (one of "debug", "info", "warn", "error"; defaults to info).
func New(level string) *slog.Logger {
	return NewWriter(os.Stderr, level)
}

// NewWriter is like [New] but writes to w. Used by tests and by
// commands that tee cycle output into a durable log file.
func NewWriter(w io.Writer, level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
	}))
}
