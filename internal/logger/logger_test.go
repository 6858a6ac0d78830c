package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Info("ticket", "sold seat 12")
	l.LogSecurity("LOGIN_FAILED", "user admin")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "TICKET", entry.Category)
	assert.Equal(t, "sold seat 12", entry.Message)
	assert.Equal(t, "logger_test.go", entry.File)

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "SECURITY", entry.Category)
	assert.Equal(t, "[LOGIN_FAILED] user admin", entry.Message)
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)
	l.minLevel = ParseLevel("warn")

	l.Debug("APP", "hidden")
	l.Info("APP", "hidden")
	l.Error("APP", "shown")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "shown")
}

func TestFatalExits(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal("CONFIG", "missing secret")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), `"level":"FATAL"`)
}

func TestNewLoggerCreatesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir, "debug")
	require.NoError(t, err)
	defer l.Close()

	l.Info("APP", "started")
	assert.NotNil(t, l.logFile)
}
