// Package config loads the measx command line configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/measx/codec"
)

// Config is the measx CLI configuration.
type Config struct {
	Log       Logging   `yaml:"log"`
	CacheDir  string    `yaml:"cache_dir"`
	Layout    string    `yaml:"layout"`
	Resources Resources `yaml:"resources"`
	Export    Export    `yaml:"export"`
}

// Logging configures the CLI logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Color  string `yaml:"color"`
}

// Resources bounds memory, workers and download throughput.
type Resources struct {
	MemoryLimitBytes   int64 `yaml:"memory_limit_bytes"`
	MaxWorkers         int64 `yaml:"max_workers"`
	IOLimitBytesPerSec int64 `yaml:"io_limit_bytes_per_sec"`
}

// Export holds defaults for the fetch command output.
type Export struct {
	Format      string `yaml:"format"`
	Compression string `yaml:"compression"`
	// JSONCodec selects the JSON implementation by name: go-json or json.
	JSONCodec string `yaml:"json_codec,omitempty"`
	// CatalogTable names the DynamoDB table exports are recorded in.
	// Empty disables recording.
	CatalogTable string `yaml:"catalog_table,omitempty"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: Logging{
			Level:  "info",
			Format: "text",
			Color:  "auto",
		},
		CacheDir: filepath.Join(os.TempDir(), "measx"),
		Layout:   "3p-nocurrent",
		Resources: Resources{
			MaxWorkers: 4,
		},
		Export: Export{
			Format:      "csv",
			Compression: "none",
		},
	}
}

// Load reads the configuration at path. Fields missing from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks enumerated fields and limits.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format %q: want text or json", c.Log.Format))
	}
	switch c.Log.Color {
	case "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("color %q: want auto, always or never", c.Log.Color))
	}
	if _, err := codec.ByName(c.Export.JSONCodec); err != nil {
		errs = append(errs, err)
	}
	r := c.Resources
	if r.MemoryLimitBytes < 0 || r.MaxWorkers < 0 || r.IOLimitBytesPerSec < 0 {
		errs = append(errs, errors.New("resource limits must not be negative"))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}

// DefaultPath returns the per-user configuration path, or "" when the
// user config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "measx", "config.yaml")
}
