package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/caevv/trendkeeper/internal/metrics"
	"github.com/caevv/trendkeeper/internal/retention"
	"github.com/caevv/trendkeeper/internal/store"
	"github.com/caevv/trendkeeper/internal/summary"
)

// Default values applied to optional fields.
const (
	DefaultOutputDir = "docs/assets/data"
	DefaultDriver    = "json"
	DefaultDBName    = "trendkeeper.db"

	// DefaultHookTimeoutSec bounds each hook agent run.
	DefaultHookTimeoutSec = 30
)

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "text"}
)

// LoadConfig loads and validates a trendkeeper configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadConfigOrDefault behaves like LoadConfig but returns the default
// configuration when path does not exist.
func LoadConfigOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewDefaultConfig(), nil
	}
	return cfg, err
}

// Parse decodes, defaults and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	// Retention starts from the default policy so an explicit
	// `full_days: 0` is not mistaken for an unset field.
	cfg := Config{Retention: retention.DefaultPolicy()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	// Store section
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DefaultDriver
	}
	if cfg.Store.Path == "" && cfg.Store.Driver != "json" {
		cfg.Store.Path = filepath.Join(cfg.OutputDir, DefaultDBName)
	}

	if cfg.Summary.TailSize == 0 {
		cfg.Summary.TailSize = summary.DefaultTailSize
	}

	// Families: every known family gets a complete set of documents.
	if cfg.Families == nil {
		cfg.Families = make(map[string]Family)
	}
	for name, def := range defaultFamilies(cfg.OutputDir) {
		fam := cfg.Families[name]
		if fam.History == "" {
			fam.History = def.History
		}
		if fam.Latest == "" {
			fam.Latest = def.Latest
		}
		if fam.Stats == "" {
			fam.Stats = def.Stats
		}
		cfg.Families[name] = fam
	}

	// Logging section
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Hooks.TimeoutSec == 0 {
		cfg.Hooks.TimeoutSec = DefaultHookTimeoutSec
	}
}

// validate checks the configuration for errors and inconsistencies.
func validate(cfg *Config) error {
	// Validate store driver
	if !slices.Contains(store.SupportedDrivers, cfg.Store.Driver) {
		return fmt.Errorf("invalid store driver: %s (must be one of %v)", cfg.Store.Driver, store.SupportedDrivers)
	}
	if cfg.Store.Driver != "json" && cfg.Store.Path == "" {
		return fmt.Errorf("store.path is required for driver %s", cfg.Store.Driver)
	}

	if err := cfg.Retention.Validate(); err != nil {
		return fmt.Errorf("retention: %w", err)
	}

	if cfg.Summary.TailSize < 0 {
		return fmt.Errorf("summary.tail_size must be positive")
	}

	// Validate families
	seen := make(map[string]string)
	for _, name := range cfg.FamilyNames() {
		if _, err := metrics.Lookup(name); err != nil {
			return fmt.Errorf("families: %w", err)
		}
		history := filepath.Clean(cfg.Families[name].History)
		if other, dup := seen[history]; dup {
			return fmt.Errorf("families %s and %s share history file %s", other, name, history)
		}
		seen[history] = name
	}

	// Validate logging
	if !slices.Contains(validLevels, strings.ToLower(cfg.Logging.Level)) {
		return fmt.Errorf("invalid logging.level: %s (must be one of %v)", cfg.Logging.Level, validLevels)
	}
	if !slices.Contains(validFormats, strings.ToLower(cfg.Logging.Format)) {
		return fmt.Errorf("invalid logging.format: %s (must be 'json' or 'text')", cfg.Logging.Format)
	}

	// Validate hooks
	if cfg.Hooks.TimeoutSec < 0 {
		return fmt.Errorf("hooks.timeout_sec must be positive")
	}
	hookLists := map[string][]Agent{
		"on_record":    cfg.Hooks.OnRecord,
		"on_degrading": cfg.Hooks.OnDegrading,
	}
	for hookType, agents := range hookLists {
		for i, a := range agents {
			if strings.TrimSpace(a.Agent) == "" {
				return fmt.Errorf("hooks.%s[%d]: agent is required", hookType, i)
			}
		}
	}

	return nil
}

// Normalize re-applies defaults and validation after programmatic changes,
// such as command-line overrides.
func (c *Config) Normalize() error {
	applyDefaults(c)
	if err := validate(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
