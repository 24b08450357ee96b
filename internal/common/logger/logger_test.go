package logger

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestZapAdapter_ScopedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).With(map[string]interface{}{"agent": "web_search"})

	log.Info("agent completed", map[string]interface{}{"durationMs": 12, "cause": errors.New("boom")})
	log.WithError(errors.New("fetch failed")).Warn("degraded", nil)

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "web_search", first["agent"])
	assert.EqualValues(t, 12, first["durationMs"])
	assert.Equal(t, "boom", first["cause"])

	second := entries[1].ContextMap()
	assert.Equal(t, "fetch failed", second["error"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "héé...", Truncate("hééllo", 3))
	assert.Equal(t, "untouched", Truncate("untouched", 0))

	long := strings.Repeat("x", ActivityPreviewLimit+20)
	assert.Len(t, Truncate(long, ActivityPreviewLimit), ActivityPreviewLimit+3)
}

func TestNew_FallsBackOnBadOutput(t *testing.T) {
	l := New("debug", "json", "/nonexistent-dir/for/sure/log.txt")
	require.NotNil(t, l)
	NewZapAdapter(l).Debug("still usable", nil)
}
