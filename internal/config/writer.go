package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/caevv/trendkeeper/internal/retention"
	"github.com/caevv/trendkeeper/internal/summary"
)

// SaveConfig writes a Config to a YAML file.
// It performs an atomic write by writing to a temporary file first,
// then renaming it to the target path.
func SaveConfig(cfg *Config, path string) error {
	// Validate config before saving
	if err := validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Atomic write: write to temp file, then rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath) // Clean up temp file on error
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// InitConfig writes the default configuration to path. An existing file is
// only replaced when force is set.
func InitConfig(path string, force bool) (*Config, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return nil, fmt.Errorf("config file %s already exists (use force to overwrite)", path)
	}

	cfg := NewDefaultConfig()
	if err := SaveConfig(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}
	return cfg, nil
}

// NewDefaultConfig creates a new Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		OutputDir: DefaultOutputDir,
		Store: Store{
			Driver: DefaultDriver,
		},
		Retention: retention.DefaultPolicy(),
		Summary: Summary{
			TailSize: summary.DefaultTailSize,
		},
		Families: defaultFamilies(DefaultOutputDir),
		Logging: Logging{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Hooks: Hooks{
			TimeoutSec: DefaultHookTimeoutSec,
		},
	}
}
