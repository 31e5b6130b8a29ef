// Package logging configures slog for every PyroVision binary.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide logger, tagging every line with service.
// level is debug, info, warn or error; format is json or text.
func Setup(service, level, format string) {
	logger := New(os.Stdout, level, format)
	if service != "" {
		logger = logger.With("service", service)
	}
	slog.SetDefault(logger)
}

// New builds a logger without touching the global default.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel maps a level name to slog, defaulting to info.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
