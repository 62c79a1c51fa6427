// Package config handles configuration loading and validation for revisiond.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the complete daemon configuration.
type Config struct {
	// Storage configures the key-value backend.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Autosave configures the periodic snapshot loop.
	Autosave AutosaveConfig `toml:"autosave" json:"autosave" yaml:"autosave"`

	// Retention configures manual cleanup.
	Retention RetentionConfig `toml:"retention" json:"retention" yaml:"retention"`

	// Diff configures the text diff engine.
	Diff DiffConfig `toml:"diff" json:"diff" yaml:"diff"`

	// Watch configures the manuscript file watcher.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	// Logging configures structured log output.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Type is the storage backend type: "sqlite" or "memory".
	Type string `toml:"type" json:"type" yaml:"type"`

	// Path is the path to the database file (for sqlite).
	Path string `toml:"path" json:"path" yaml:"path"`
}

// AutosaveConfig holds the automatic snapshot settings.
type AutosaveConfig struct {
	// IntervalSec is the autosave period in seconds.
	IntervalSec int `toml:"interval_sec" json:"interval_sec" yaml:"interval_sec"`

	// RetainAuto is how many auto snapshots to keep per manuscript.
	RetainAuto int `toml:"retain_auto" json:"retain_auto" yaml:"retain_auto"`
}

// RetentionConfig holds cleanup settings.
type RetentionConfig struct {
	// KeepCount is the total snapshot budget passed to cleanup; auto and
	// non-auto snapshots each keep half.
	KeepCount int `toml:"keep_count" json:"keep_count" yaml:"keep_count"`
}

// DiffConfig holds diff engine settings.
type DiffConfig struct {
	// TimeoutMs bounds a single diff computation in milliseconds.
	TimeoutMs int `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`
}

// WatchConfig holds manuscript watching configuration.
type WatchConfig struct {
	// Enabled turns the fsnotify watcher on; when off, only the timer
	// drives autosave.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// DebounceMs is how long a file must be stable before an autosave
	// is triggered.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stderr", "stdout", or "file".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output is "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Type: "sqlite",
			Path: filepath.Join(DataDir(), "revisiond.db"),
		},
		Autosave: AutosaveConfig{
			IntervalSec: 300,
			RetainAuto:  10,
		},
		Retention: RetentionConfig{
			KeepCount: 50,
		},
		Diff: DiffConfig{
			TimeoutMs: 2000,
		},
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMs: 500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// DataDir returns the platform-specific data directory.
func DataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "revisiond")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, _ := os.UserHomeDir()
			appData = home
		}
		return filepath.Join(appData, "revisiond")
	default:
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			home, _ := os.UserHomeDir()
			dataHome = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(dataHome, "revisiond")
	}
}

// Load reads a config file, chooses the decoder by extension
// (.toml, .yaml/.yml, or .json), applies environment overrides, and
// validates the result. A missing path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse TOML config: %w", err)
			}
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse YAML config: %w", err)
			}
		case ".json":
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse JSON config: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies REVISIOND_* environment variables on top of
// the loaded values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("REVISIOND_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("REVISIOND_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("REVISIOND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("REVISIOND_AUTOSAVE_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Autosave.IntervalSec = n
		}
	}
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite storage")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.type must be sqlite or memory, got %q", c.Storage.Type)
	}

	if c.Autosave.IntervalSec <= 0 {
		return fmt.Errorf("autosave.interval_sec must be positive, got %d", c.Autosave.IntervalSec)
	}
	if c.Autosave.RetainAuto <= 0 {
		return fmt.Errorf("autosave.retain_auto must be positive, got %d", c.Autosave.RetainAuto)
	}
	if c.Retention.KeepCount <= 0 {
		return fmt.Errorf("retention.keep_count must be positive, got %d", c.Retention.KeepCount)
	}
	if c.Diff.TimeoutMs <= 0 {
		return fmt.Errorf("diff.timeout_ms must be positive, got %d", c.Diff.TimeoutMs)
	}
	if c.Watch.Enabled && c.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative, got %d", c.Watch.DebounceMs)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "stderr", "stdout":
	case "file":
		if c.Logging.FilePath == "" {
			return fmt.Errorf("logging.file_path is required for file output")
		}
	default:
		return fmt.Errorf("logging.output must be stderr, stdout, or file, got %q", c.Logging.Output)
	}
	return nil
}
