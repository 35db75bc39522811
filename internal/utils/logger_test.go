package utils

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "test", Info)

	logger.Debug("hidden")
	logger.Info("shown", "bucket", "docs")
	logger.Error("failed", "error", "boom", "dangling")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[test] ")
	assert.Contains(t, out, "[INFO] shown bucket=docs")
	assert.Contains(t, out, "[ERROR] failed error=boom dangling=MISSING")

	buf.Reset()
	logger.SetLogLevel(Error)
	logger.Warn("quiet")
	assert.Empty(t, buf.String())
}

func TestLogger_DefaultLevel(t *testing.T) {
	SetDefaultLogLevel(Debug)
	t.Cleanup(func() { SetDefaultLogLevel(Warning) })

	var buf bytes.Buffer
	NewLoggerWithWriter(&buf, "test").Debug("visible")
	assert.True(t, strings.Contains(buf.String(), "[DEBUG] visible"))
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":    Debug,
		" INFO ":   Info,
		"warn":     Warning,
		"Warning":  Warning,
		"error":    Error,
		"fatal":    Critical,
		"critical": Critical,
		"verbose":  Warning,
		"":         Warning,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestLogger_DefaultWriter(t *testing.T) {
	var buf bytes.Buffer
	SetDefaultWriter(&buf)
	t.Cleanup(func() { SetDefaultWriter(os.Stdout) })

	NewLogger("test").Error("redirected")
	assert.Contains(t, buf.String(), "[ERROR] redirected")
}
