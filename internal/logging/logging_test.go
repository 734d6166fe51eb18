package logging

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
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseLevel(tc.in), tc.in)
	}
}

func TestNewWithWriter_Formats(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "info", "text").Info("source synced", "source", "pics")
	assert.Contains(t, buf.String(), "msg=\"source synced\"")
	assert.Contains(t, buf.String(), "source=pics")

	buf.Reset()
	NewWithWriter(&buf, "info", "json").Info("source synced", "source", "pics")
	assert.Contains(t, buf.String(), `"source":"pics"`)

	buf.Reset()
	NewWithWriter(&buf, "warn", "json").Info("dropped")
	assert.Empty(t, buf.String())
}
