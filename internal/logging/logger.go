package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New builds a text logger writing to w at level and recording into history.
// A nil history disables recording.
func New(w io.Writer, level string, history *History) *slog.Logger {
	base := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(NewHandler(base, history))
}

// ParseLevel maps a level name to a slog level, defaulting to info
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
