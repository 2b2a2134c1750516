package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a structured text logger writing to stderr, so log lines do
// not mix with the interactive prompt on stdout.
// app: application name (e.g., "peerlink")
// level: one of "debug", "info", "warn", "error" (default: "info")
func New(app string, level string) *slog.Logger {
	return NewWithWriter(app, level, os.Stderr)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(app string, level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	logger := slog.New(slog.NewTextHandler(w, opts))

	return logger.With(
		slog.String("app", app),
		slog.Int("pid", os.Getpid()),
	)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
