package logging

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestLoggerWritesToBuffer(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelInfo, io.Discard)

	logger.Info("library loaded", map[string]string{"path": "/tmp/lib.so"})

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != LevelInfo {
		t.Fatalf("expected info level, got %q", entry.Level)
	}
	if entry.Message != "library loaded" {
		t.Fatalf("expected message library loaded, got %q", entry.Message)
	}
	if entry.Context["path"] != "/tmp/lib.so" {
		t.Fatalf("expected context path, got %v", entry.Context)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelWarning, io.Discard)

	logger.Info("info", nil)
	logger.Warn("warn", nil)

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != LevelWarning {
		t.Fatalf("expected warning level, got %q", entries[0].Level)
	}
}

func TestLoggerWithMergesBaseContext(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelDebug, io.Discard).With(map[string]string{
		"component": "reload",
	})

	logger.Debug("reading changes", map[string]string{"dir": "/proj/build"})

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Context["component"] != "reload" || entries[0].Context["dir"] != "/proj/build" {
		t.Fatalf("expected merged context, got %v", entries[0].Context)
	}
}

func TestLoggerRendersFieldsToOutput(t *testing.T) {
	var output bytes.Buffer
	logger := NewLoggerWithOutput(nil, LevelInfo, &output)

	logger.Error("failed to load library", map[string]string{
		"path":  "/tmp/lib.so",
		"error": "invalid ELF header",
	})
	logger.Debug("hidden", nil)

	rendered := output.String()
	for _, want := range []string{"failed to load library", "path=/tmp/lib.so", "invalid ELF header"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("expected %q in output %q", want, rendered)
		}
	}
	if strings.Contains(rendered, "hidden") {
		t.Fatalf("did not expect debug entry in output %q", rendered)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		" warn ":  LevelWarning,
		"warning": LevelWarning,
		"error":   LevelError,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %q, %v; want %q", raw, got, ok, want)
		}
	}
	if _, ok := ParseLevel("verbose"); ok {
		t.Fatal("expected unknown level to be rejected")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("ignored", nil)
	if logger.Enabled(LevelError) {
		t.Fatal("expected nil logger to be disabled")
	}
	if logger.With(map[string]string{"a": "b"}) != nil {
		t.Fatal("expected nil logger With to stay nil")
	}
}
