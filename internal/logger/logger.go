package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Init installs the process logger. Servers log JSON; console commands pass
// text=true so log lines stay readable next to streamed output.
func Init(level string, w io.Writer, text bool) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler
	if text {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

func parseLevel(s string) slog.Level {
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
