package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hotreload/internal/changes"
	"hotreload/internal/lockwait"
	"hotreload/internal/logging"
	"hotreload/internal/reload"
)

const (
	ConfigEnvVar     = "HOTRELOAD_CONFIG"
	ScratchDirEnvVar = "HOTRELOAD_SCRATCH_DIR"
	LogLevelEnvVar   = "HOTRELOAD_LOG_LEVEL"

	minBufferSize = changes.MaxRecordSize
)

type Config struct {
	LibraryPath    string
	ScratchDir     string
	BufferSize     int
	MaxAttempts    int
	InitialBackoff time.Duration
	LogLevel       logging.Level
	KeepStaged     bool
	CoalesceBatch  bool
}

// fileConfig mirrors the YAML layout. Pointers distinguish unset keys from zero values.
type fileConfig struct {
	Library        string `yaml:"library"`
	ScratchDir     string `yaml:"scratch_dir"`
	BufferSize     *int   `yaml:"buffer_size"`
	MaxAttempts    *int   `yaml:"max_attempts"`
	InitialBackoff string `yaml:"initial_backoff"`
	LogLevel       string `yaml:"log_level"`
	KeepStaged     *bool  `yaml:"keep_staged"`
	CoalesceBatch  *bool  `yaml:"coalesce_batch"`
}

func Default() Config {
	return Config{
		ScratchDir:     os.TempDir(),
		BufferSize:     reload.DefaultBufferSize,
		MaxAttempts:    lockwait.DefaultMaxAttempts,
		InitialBackoff: lockwait.DefaultInitialInterval,
		LogLevel:       logging.LevelInfo,
		CoalesceBatch:  true,
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty path
// or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(cfg, payload)
}

// Parse overlays the YAML document in payload onto base.
func Parse(base Config, payload []byte) (Config, error) {
	var file fileConfig
	if err := yaml.Unmarshal(payload, &file); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := base
	if value := strings.TrimSpace(file.Library); value != "" {
		cfg.LibraryPath = value
	}
	if value := strings.TrimSpace(file.ScratchDir); value != "" {
		cfg.ScratchDir = value
	}
	if file.BufferSize != nil {
		cfg.BufferSize = *file.BufferSize
	}
	if file.MaxAttempts != nil {
		cfg.MaxAttempts = *file.MaxAttempts
	}
	if value := strings.TrimSpace(file.InitialBackoff); value != "" {
		interval, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: initial_backoff: %w", err)
		}
		cfg.InitialBackoff = interval
	}
	if value := strings.TrimSpace(file.LogLevel); value != "" {
		level, ok := logging.ParseLevel(value)
		if !ok {
			return Config{}, fmt.Errorf("parse config: unknown log_level %q", value)
		}
		cfg.LogLevel = level
	}
	if file.KeepStaged != nil {
		cfg.KeepStaged = *file.KeepStaged
	}
	if file.CoalesceBatch != nil {
		cfg.CoalesceBatch = *file.CoalesceBatch
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.LibraryPath) == "" {
		errs = append(errs, errors.New("library path is required"))
	}
	if strings.TrimSpace(c.ScratchDir) == "" {
		errs = append(errs, errors.New("scratch dir is required"))
	}
	if c.BufferSize < minBufferSize {
		errs = append(errs, fmt.Errorf("buffer size must be at least %d", minBufferSize))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}
	if c.InitialBackoff <= 0 {
		errs = append(errs, errors.New("initial backoff must be positive"))
	}
	if _, ok := logging.ParseLevel(string(c.LogLevel)); !ok {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}
