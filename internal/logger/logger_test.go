package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{" warn ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestLoggerComponentTag(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, LevelDebug)

	l.Debug("worker-1", "debug message")
	l.Info("worker-1", "info message")
	l.Warn("worker-1", "warn message")
	l.Error("worker-1", "error message")

	output := buf.String()
	for _, tag := range []string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]", "[worker-1]"} {
		if !strings.Contains(output, tag) {
			t.Errorf("expected %s in output", tag)
		}
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, LevelWarn)

	l.Debug("", "debug message")
	l.Info("", "info message")
	l.Warn("", "warn message")

	output := buf.String()
	assert.NotContains(t, output, "[DEBUG]")
	assert.NotContains(t, output, "[INFO]")
	assert.Contains(t, output, "[WARN]")

	assert.False(t, l.Enabled(LevelInfo))
	assert.True(t, l.Enabled(LevelError))
}

func TestLoggerSetLevelAndOutput(t *testing.T) {
	first := &bytes.Buffer{}
	l := New(first, LevelError)

	l.Info("", "should not appear")
	assert.Empty(t, first.String())

	second := &bytes.Buffer{}
	l.SetLevel(LevelInfo)
	l.SetOutput(second)
	l.Info("", "should appear")

	assert.Empty(t, first.String())
	assert.Contains(t, second.String(), "should appear")
}

func TestLoggerWithoutComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, LevelInfo)

	l.Info("", "count: %d, name: %s", 42, "test")

	output := buf.String()
	assert.NotContains(t, output, "[]")
	assert.Contains(t, output, "count: 42, name: test")
}

func TestScopedLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, LevelDebug)
	s := l.With("engine")

	s.Debug("job %s", "abc")
	s.Error("failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Contains(t, line, "[engine]")
	}
	assert.Contains(t, lines[0], "job abc")
}
