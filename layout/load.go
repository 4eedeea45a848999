package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/measx/codec"
)

// Load reads a layout from a YAML or JSON file. The format is chosen by
// extension; anything other than .json is read as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		cfg, err = ParseJSON(data)
	default:
		cfg, err = ParseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return cfg, nil
}

// ParseYAML decodes and validates a YAML layout document.
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseJSON decodes and validates a JSON layout document.
func ParseJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := (codec.GoJSON{}).Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Resolve returns a preset when nameOrPath names one, and otherwise loads the
// file at nameOrPath.
func Resolve(nameOrPath string) (*Config, error) {
	if cfg, err := Preset(nameOrPath); err == nil {
		return cfg, nil
	}
	return Load(nameOrPath)
}

// YAML encodes c as a YAML document that Load accepts.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
