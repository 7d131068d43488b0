package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/caevv/trendkeeper/internal/config"
	"github.com/caevv/trendkeeper/internal/hooks"
	"github.com/caevv/trendkeeper/internal/schema"
	"github.com/caevv/trendkeeper/internal/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and stored histories",
	Long: `Validate the syntax and semantics of a trendkeeper configuration file.

It checks for:
  - Valid YAML syntax
  - Valid store driver configuration
  - Ordered retention thresholds
  - Known metric families with distinct history files
  - Valid logging settings
  - Hook agents that exist in the agent directories and are allowed

With --history, every stored history document is also checked against the
history JSON schema.

Example:
  trendkeeper validate --config ./trendkeeper.yaml --history`,
	RunE: validateConfig,
}

func init() {
	validateCmd.Flags().Bool("history", false, "Also validate stored history documents")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	configPath := settings.GetString("config")

	logger.Info("validating configuration", "path", configPath)

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Error("configuration file not found", "path", configPath)
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("configuration validation failed", "error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	// Print validation summary
	logger.Info("configuration is valid",
		"path", configPath,
		"store_driver", cfg.Store.Driver,
		"full_days", cfg.Retention.FullDays,
		"weekly_days", cfg.Retention.WeeklyDays,
		"monthly_days", cfg.Retention.MonthlyDays,
		"tail_size", cfg.Summary.TailSize)

	for _, name := range cfg.FamilyNames() {
		fam := cfg.Families[name]
		logger.Debug("family configured",
			"family", name,
			"history", fam.History,
			"latest", fam.Latest,
			"stats", fam.Stats)
	}

	if err := validateHookAgents(cfg); err != nil {
		logger.Error("hook validation failed", "error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	checkHistory, _ := cmd.Flags().GetBool("history")
	if !checkHistory {
		return nil
	}

	invalid, err := validateHistories(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%d history document(s) failed schema validation", invalid)
	}
	return nil
}

// validateHookAgents is stricter than record: a missing agent is an error
// even without hooks.fail_on_error.
func validateHookAgents(cfg *config.Config) error {
	if !cfg.Hooks.Configured() {
		return nil
	}
	executor := hooks.New(logger)
	if err := executor.Discover(cfg.Hooks.AgentDirs); err != nil {
		return err
	}
	if err := hooks.ValidateHooks(executor, cfg.Hooks); err != nil {
		return err
	}
	logger.Debug("hooks configured",
		"on_record", len(cfg.Hooks.OnRecord),
		"on_degrading", len(cfg.Hooks.OnDegrading))
	return nil
}

// validateHistories checks each family's stored document against the
// history schema and returns the number of invalid documents.
func validateHistories(cfg *config.Config, out io.Writer) (int, error) {
	st, err := openStore(cfg)
	if err != nil {
		return 0, err
	}
	defer closeStore(st)

	invalid := 0
	for _, name := range cfg.FamilyNames() {
		data, err := storedDocument(cfg, st, name)
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(out, "%s: no history yet\n", name)
			continue
		}
		if err != nil {
			return invalid, err
		}

		res, err := schema.Validate(data)
		if err != nil {
			color.New(color.FgRed).Fprintf(out, "%s: %v\n", name, err)
			invalid++
			continue
		}
		if res.Valid() {
			color.New(color.FgGreen).Fprintf(out, "%s: history is valid\n", name)
			continue
		}

		invalid++
		color.New(color.FgRed).Fprintf(out, "%s: history validation failed\n", name)
		for _, v := range res.Violations {
			color.New(color.FgRed).Fprintf(out, "  - %s\n", v)
		}
	}
	return invalid, nil
}

// storedDocument returns the raw document for the json driver, so that
// content the store would silently replace is still reported. Other drivers
// are validated through their decoded form.
func storedDocument(cfg *config.Config, st store.Store, family string) ([]byte, error) {
	if cfg.Store.Driver == "json" {
		return os.ReadFile(cfg.Families[family].History)
	}
	return json.Marshal(st.Load(family))
}
