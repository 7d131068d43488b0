package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/caevv/trendkeeper/internal/config"
	"github.com/caevv/trendkeeper/internal/logging"
)

const envPrefix = "TRENDKEEPER"

var (
	// Version information (set via ldflags at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	// Global logger
	logger *slog.Logger

	// closeLog releases the log file opened from the configuration, if any.
	closeLog = func() error { return nil }

	// settings binds persistent flags and TRENDKEEPER_* environment variables.
	settings = viper.New()

	// nowFunc is the clock used for snapshot timestamps and retention.
	nowFunc = func() time.Time { return time.Now().UTC() }
)

func main() {
	// Initialize structured logger
	logger = logging.New("info")
	slog.SetDefault(logger)

	ctx := setupSignalHandler()

	err := rootCmd.ExecuteContext(ctx)
	_ = closeLog()
	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "trendkeeper",
	Short: "Track CI metric history with tiered retention and trends",
	Long: `trendkeeper records benchmark timings, coverage percentages and test
counts from CI runs into per-family history documents, prunes old entries
with a tiered retention policy and derives per-metric trends and summaries.

Features:
  - Criterion and llvm-cov collectors
  - Tiered retention (full, weekly, monthly, quarterly)
  - Sign-aware trend classification
  - JSON, BoltDB and SQLite history stores
  - Parquet and Prometheus textfile export`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if settings.GetBool("debug") {
			logger = logging.New("debug")
			slog.SetDefault(logger)
			logger.Debug("debug logging enabled")
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "trendkeeper.yaml", "Path to configuration file (defaults apply when missing)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-level", "", "Override logging.level")
	flags.String("log-format", "", "Override logging.format (json or text)")
	flags.String("store-driver", "", "Override store.driver (json, bbolt or sqlite)")
	flags.String("store-path", "", "Override store.path")

	for key, flag := range map[string]string{
		"config":         "config",
		"debug":          "debug",
		"logging.level":  "log-level",
		"logging.format": "log-format",
		"store.driver":   "store-driver",
		"store.path":     "store-path",
	} {
		_ = settings.BindPFlag(key, flags.Lookup(flag))
	}
	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	settings.AutomaticEnv()

	// Register subcommands
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
}

// loadConfig reads the configuration file, applies flag and environment
// overrides and switches the global logger to the configured one.
func loadConfig() (*config.Config, error) {
	configPath := settings.GetString("config")

	cfg, err := config.LoadConfigOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := map[string]*string{
		"logging.level":  &cfg.Logging.Level,
		"logging.format": &cfg.Logging.Format,
		"logging.output": &cfg.Logging.Output,
		"store.driver":   &cfg.Store.Driver,
		"store.path":     &cfg.Store.Path,
	}
	for key, field := range overrides {
		if v := settings.GetString(key); settings.IsSet(key) && v != "" {
			*field = v
		}
	}
	if settings.GetBool("debug") {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid configuration overrides: %w", err)
	}

	// Apply logging config
	runLogger, closer, err := logging.NewFromConfig(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	_ = closeLog()
	logger, closeLog = runLogger, closer
	slog.SetDefault(runLogger)

	logger.Debug("configuration loaded",
		"path", configPath,
		"store_driver", cfg.Store.Driver,
		"families", cfg.FamilyNames())
	return cfg, nil
}

// setupSignalHandler creates a context that cancels on SIGINT or SIGTERM
func setupSignalHandler() context.Context {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	return cancelOnSignal(context.Background(), sigChan, func() { os.Exit(1) })
}

// cancelOnSignal cancels the returned context on the first signal and calls
// exit on the second. It logs through slog.Default, which loadConfig
// replaces atomically, rather than the package logger.
func cancelOnSignal(parent context.Context, sigChan <-chan os.Signal, exit func()) context.Context {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		sig := <-sigChan
		slog.Default().Info("received shutdown signal", "signal", sig.String())
		cancel()

		// Force exit if second signal received
		sig = <-sigChan
		slog.Default().Warn("received second signal, forcing exit", "signal", sig.String())
		exit()
	}()

	return ctx
}
