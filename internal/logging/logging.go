package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MatusOllah/slogcolor"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Init creates and sets the package-level default slog logger on stderr.
// "json" uses the JSON handler; anything else gets colored text.
func Init(format string, level slog.Level) *slog.Logger {
	logger := slog.New(NewHandler(os.Stderr, format, level))
	slog.SetDefault(logger)
	return logger
}

// NewHandler returns the handler Init would install, writing to w.
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	if strings.EqualFold(format, FormatJSON) {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	opts := *slogcolor.DefaultOptions
	opts.Level = level
	return slogcolor.NewHandler(w, &opts)
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
