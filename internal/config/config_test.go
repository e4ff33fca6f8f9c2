package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hotreload/internal/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ScratchDir != os.TempDir() {
		t.Fatalf("expected scratch dir %q, got %q", os.TempDir(), cfg.ScratchDir)
	}
	if cfg.BufferSize != 8192 || cfg.MaxAttempts != 5 || cfg.InitialBackoff != 100*time.Millisecond {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.LogLevel != logging.LevelInfo || !cfg.CoalesceBatch || cfg.KeepStaged {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}

	cfg, err = Load("")
	if err != nil || cfg != Default() {
		t.Fatalf("expected defaults for empty path, got %+v err=%v", cfg, err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotreload.yaml")
	payload := strings.Join([]string{
		"library: build/game.so",
		"scratch_dir: /var/tmp/hot",
		"max_attempts: 8",
		"initial_backoff: 250ms",
		"log_level: debug",
		"keep_staged: true",
		"coalesce_batch: false",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LibraryPath != "build/game.so" || cfg.ScratchDir != "/var/tmp/hot" {
		t.Fatalf("unexpected paths %+v", cfg)
	}
	if cfg.MaxAttempts != 8 || cfg.InitialBackoff != 250*time.Millisecond {
		t.Fatalf("unexpected retry policy %+v", cfg)
	}
	if cfg.LogLevel != logging.LevelDebug || !cfg.KeepStaged || cfg.CoalesceBatch {
		t.Fatalf("unexpected flags %+v", cfg)
	}
	if cfg.BufferSize != 8192 {
		t.Fatalf("expected unset buffer size to keep default, got %d", cfg.BufferSize)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"duration":  "initial_backoff: soon\n",
		"log level": "log_level: loud\n",
		"syntax":    "max_attempts: [\n",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(Default(), []byte(payload)); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.LibraryPath = "lib.so"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	broken := cfg
	broken.LibraryPath = ""
	broken.MaxAttempts = 0
	broken.InitialBackoff = 0
	err := broken.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"library path", "max attempts", "initial backoff"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}

	tiny := cfg
	tiny.BufferSize = 64
	if err := tiny.Validate(); err == nil {
		t.Fatal("expected buffer size error")
	}
}
