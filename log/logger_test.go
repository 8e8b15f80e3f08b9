package log

import (
	"bytes"
	"strings"
	"testing"
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
		{LevelSilent, "UNKNOWN"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level(%d).String() = %s, want %s", tt.level, got, tt.expected)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := Nop()

	// Nop is a singleton.
	if logger != Nop() {
		t.Error("Nop() should return the same instance")
	}

	// Must not panic.
	logger.Debug("test %s", "debug")
	logger.Info("test %s", "info")
	logger.Warn("test %s", "warn")
	logger.Error("test %s", "error")
}

func TestStdLoggerOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewStdLogger(WithWriter(buf), WithLevel(LevelDebug))

	logger.Info("probe round %d", 1)
	output := buf.String()

	if !strings.Contains(output, "INFO") {
		t.Errorf("output should contain INFO: %s", output)
	}
	if !strings.Contains(output, "probe round 1") {
		t.Errorf("output should contain the message: %s", output)
	}
	if !strings.Contains(output, "[natprobe]") {
		t.Errorf("output should contain the default prefix: %s", output)
	}
}

func TestStdLoggerLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewStdLogger(WithWriter(buf), WithLevel(LevelWarn))

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("visible warn")
	logger.Error("visible error")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("filtered levels leaked into output: %s", output)
	}
	if !strings.Contains(output, "visible warn") || !strings.Contains(output, "visible error") {
		t.Errorf("expected levels missing from output: %s", output)
	}
}

func TestStdLoggerPrefix(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewStdLogger(WithWriter(buf), WithPrefix("[test]"))

	logger.Info("message")
	if !strings.Contains(buf.String(), "[test]") {
		t.Errorf("output should contain the prefix: %s", buf.String())
	}
}
