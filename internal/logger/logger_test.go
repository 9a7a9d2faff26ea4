package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestInitFormats(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Init("info", &buf, false)
	slog.Debug("hidden")
	slog.Info("dispatch", "agent", "financial")
	assert.Contains(t, buf.String(), `"msg":"dispatch"`)
	assert.Contains(t, buf.String(), `"agent":"financial"`)
	assert.NotContains(t, buf.String(), "hidden")

	buf.Reset()
	Init("debug", &buf, true)
	slog.Debug("tool call", "tool", "web_search")
	assert.Contains(t, buf.String(), "msg=\"tool call\" tool=web_search")
}
