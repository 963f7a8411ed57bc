package applog

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// InitConfig holds configuration for Init.
type InitConfig struct {
	LogLevel string
	// Output defaults to stderr.
	Output io.Writer
}

// Init sets up structured logging and makes it the process default. The
// stdlib log package is redirected to the same writer.
func Init(cfg InitConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	log.SetOutput(out)
	log.SetFlags(0)
	return logger
}

// ParseLevel converts a level string to slog.Level. Defaults to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
