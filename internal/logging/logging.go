package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"ContentFactory/internal/config"
	"ContentFactory/pkg/logger"
)

// New creates a console slog.Logger with provided level string.
func New(level string) *slog.Logger {
	return newLogger(os.Stdout, level)
}

// NewWithOutput writes to stdout and, when a file is configured, to a
// rotating log file as well. The returned closer releases the file.
func NewWithOutput(cfg config.LoggingConfig) (*slog.Logger, io.Closer) {
	if cfg.File == "" {
		return New(cfg.Level), nopCloser{}
	}
	file := logger.NewRotatingWriter(logger.RotationConfig{
		Filename:   cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
	return newLogger(io.MultiWriter(os.Stdout, file), cfg.Level), file
}

func newLogger(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: levelFromString(level),
	})
	return slog.New(handler)
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
