// Package logger_test contains tests for the logger package
package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/autonfe/desk/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// restoreDefault puts back the default logger replaced by Setup.
func restoreDefault(t *testing.T) {
	t.Helper()
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		want  slog.Level
		valid bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{" error ", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			level, ok := logger.ParseLevel(tt.name)
			assert.Equal(t, tt.want, level)
			assert.Equal(t, tt.valid, ok)
		})
	}
}

func TestSetup_JSONToOutput(t *testing.T) {
	restoreDefault(t)

	var buf bytes.Buffer
	l, closeFn, err := logger.Setup(logger.LoggerConfig{Level: "debug", Output: &buf})
	require.NoError(t, err)
	require.NotNil(t, l)
	defer func() { assert.NoError(t, closeFn()) }()

	l.Debug("connecting", "component", "task_runner")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "connecting", entry["msg"])
	assert.Equal(t, "task_runner", entry["component"])

	assert.Same(t, l.Handler(), slog.Default().Handler(), "Setup must install the default logger")
}

func TestSetup_LevelFilters(t *testing.T) {
	restoreDefault(t)

	var buf bytes.Buffer
	l, _, err := logger.Setup(logger.LoggerConfig{Level: "warn", Output: &buf})
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetup_InvalidLevelWarns(t *testing.T) {
	restoreDefault(t)

	var buf bytes.Buffer
	l, _, err := logger.Setup(logger.LoggerConfig{Level: "chatty", Output: &buf})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "invalid log level configured")
	assert.Contains(t, buf.String(), "chatty")
	assert.True(t, l.Enabled(t.Context(), slog.LevelInfo))
	assert.False(t, l.Enabled(t.Context(), slog.LevelDebug))
}

func TestSetup_TextFormat(t *testing.T) {
	restoreDefault(t)

	var buf bytes.Buffer
	l, _, err := logger.Setup(logger.LoggerConfig{Level: "info", Format: "text", Output: &buf})
	require.NoError(t, err)

	l.Info("ready", "toasts", 5)
	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "msg=ready")
	assert.Contains(t, line, "toasts=5")
}

func TestSetup_File(t *testing.T) {
	restoreDefault(t)

	path := filepath.Join(t.TempDir(), "autonfe.log")
	l, closeFn, err := logger.Setup(logger.LoggerConfig{Level: "info", File: path})
	require.NoError(t, err)

	l.Info("written to file")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestSetup_FileError(t *testing.T) {
	restoreDefault(t)

	path := filepath.Join(t.TempDir(), "missing-dir", "autonfe.log")
	l, closeFn, err := logger.Setup(logger.LoggerConfig{File: path})

	assert.Error(t, err)
	assert.Nil(t, l)
	assert.NoError(t, closeFn())
}

func TestTestHelpers(t *testing.T) {
	t.Parallel()

	l, buf := logger.GetTestLogger(t)
	l.Info("run finished", "outcome", "cancelled", "progress", 50)

	logger.AssertLogContains(t, buf, "run finished")
	logger.AssertLogNotContains(t, buf, "invalid credential")
	logger.AssertLogField(t, buf, "outcome", "cancelled")
	logger.AssertLogField(t, buf, "progress", float64(50))

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	buf.Reset()
	assert.Empty(t, buf.String())
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { logger.Discard().Error("dropped") })
}
