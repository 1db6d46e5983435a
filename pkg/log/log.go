// Package log configures the process-wide slog logger.
package log

import (
	"io"
	"log/slog"
	"os"
)

func parseLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds a text handler, or a JSON handler when format is "json".
func NewHandler(w io.Writer, logLevel, format string) slog.Handler {
	options := &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}

	if format == "json" {
		return slog.NewJSONHandler(w, options)
	}

	return slog.NewTextHandler(w, options)
}

func Setup(logLevel, format string) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, logLevel, format)))
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
