package config

import (
	"path/filepath"
	"sort"

	"github.com/caevv/trendkeeper/internal/retention"
)

// Config represents the top-level configuration structure for trendkeeper.
type Config struct {
	OutputDir string            `yaml:"output_dir"` // directory holding the generated documents
	Store     Store             `yaml:"store"`
	Retention retention.Policy  `yaml:"retention"`
	Summary   Summary           `yaml:"summary"`
	Families  map[string]Family `yaml:"families"` // keyed by metric family name
	Logging   Logging           `yaml:"logging"`
	Hooks     Hooks             `yaml:"hooks,omitempty"`
}

// Store configuration for history persistence.
type Store struct {
	Driver string `yaml:"driver"` // "json", "bbolt", or "sqlite"
	Path   string `yaml:"path"`   // database file for bbolt and sqlite
}

// Summary configuration.
type Summary struct {
	TailSize int `yaml:"tail_size"` // points kept in each summary history tail
}

// Family holds the documents written for one metric family.
type Family struct {
	History string `yaml:"history"`         // history document (json driver)
	Latest  string `yaml:"latest"`          // latest-only document
	Stats   string `yaml:"stats,omitempty"` // combined stats document (coverage only)
}

// Logging configuration.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stderr, stdout, discard or a file path
}

// Hooks configures the agents run after a snapshot is recorded.
type Hooks struct {
	AgentDirs     []string `yaml:"agent_dirs,omitempty"`     // search paths; empty means the defaults
	AllowedAgents []string `yaml:"allowed_agents,omitempty"` // empty allows every discovered agent
	TimeoutSec    int      `yaml:"timeout_sec"`
	FailOnError   bool     `yaml:"fail_on_error"` // a failing hook fails the record command
	OnRecord      []Agent  `yaml:"on_record,omitempty"`
	OnDegrading   []Agent  `yaml:"on_degrading,omitempty"` // only when a tracked metric is degrading
}

// Agent is a single hook invocation.
type Agent struct {
	Agent string         `yaml:"agent"`          // executable name in an agent directory
	With  map[string]any `yaml:"with,omitempty"` // passed to the agent as CONFIG_JSON
}

// Configured reports whether any hook is declared.
func (h Hooks) Configured() bool {
	return len(h.OnRecord) > 0 || len(h.OnDegrading) > 0
}

// HistoryFiles maps each configured family to its history document.
func (c *Config) HistoryFiles() map[string]string {
	files := make(map[string]string, len(c.Families))
	for name, fam := range c.Families {
		files[name] = fam.History
	}
	return files
}

// FamilyNames lists the configured families in sorted order.
func (c *Config) FamilyNames() []string {
	names := make([]string, 0, len(c.Families))
	for name := range c.Families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultFamilies are the documents consumed by the published pages.
func defaultFamilies(outputDir string) map[string]Family {
	return map[string]Family{
		"benchmarks": {
			History: filepath.Join(outputDir, "benchmarks-history.json"),
			Latest:  filepath.Join(outputDir, "benchmarks.json"),
		},
		"coverage": {
			History: filepath.Join(outputDir, "coverage-history.json"),
			Latest:  filepath.Join(outputDir, "coverage.json"),
			Stats:   filepath.Join(outputDir, "stats.json"),
		},
	}
}
