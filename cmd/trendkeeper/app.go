package main

import (
	"fmt"

	"github.com/caevv/trendkeeper/internal/config"
	"github.com/caevv/trendkeeper/internal/hooks"
	"github.com/caevv/trendkeeper/internal/metrics"
	"github.com/caevv/trendkeeper/internal/recorder"
	"github.com/caevv/trendkeeper/internal/store"
)

// openStore initializes the configured history store.
func openStore(cfg *config.Config) (store.Store, error) {
	st, err := store.NewStore(store.Options{
		Driver:       cfg.Store.Driver,
		Path:         cfg.Store.Path,
		HistoryFiles: cfg.HistoryFiles(),
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	logger.Debug("store initialized", "driver", cfg.Store.Driver, "path", cfg.Store.Path)
	return st, nil
}

func closeStore(st store.Store) {
	if err := st.Close(); err != nil {
		logger.Error("failed to close store", "error", err)
	}
}

// newRecorder wires a recorder to st using the configured policy and documents.
func newRecorder(cfg *config.Config, st store.Store) (*recorder.Recorder, error) {
	docs := make(map[string]recorder.Documents, len(cfg.Families))
	for name, fam := range cfg.Families {
		docs[name] = recorder.Documents{Latest: fam.Latest, Stats: fam.Stats}
	}

	return recorder.New(recorder.Options{
		Store:     st,
		Policy:    cfg.Retention,
		TailSize:  cfg.Summary.TailSize,
		Documents: docs,
		Logger:    logger,
		Now:       nowFunc,
	})
}

// newHookExecutor discovers the hook agents. It returns nil when no hooks
// are configured. An agent that cannot be found is fatal only with
// hooks.fail_on_error, so that a broken hook never blocks recording otherwise.
func newHookExecutor(cfg *config.Config) (*hooks.Executor, error) {
	if !cfg.Hooks.Configured() {
		return nil, nil
	}

	executor := hooks.New(logger)
	if err := executor.Discover(cfg.Hooks.AgentDirs); err != nil {
		return nil, err
	}
	if err := hooks.ValidateHooks(executor, cfg.Hooks); err != nil {
		if cfg.Hooks.FailOnError {
			return nil, err
		}
		logger.Warn("hook configuration is invalid", "error", err)
	}
	return executor, nil
}

// historyLocation is where the family's history lives for the active driver.
func historyLocation(cfg *config.Config, family string) string {
	if cfg.Store.Driver == "json" {
		return cfg.Families[family].History
	}
	return cfg.Store.Path
}

// resolveFamilies maps command arguments to families. No arguments means
// every configured family.
func resolveFamilies(cfg *config.Config, args []string) ([]metrics.Family, error) {
	if len(args) == 0 {
		args = cfg.FamilyNames()
	}

	families := make([]metrics.Family, 0, len(args))
	for _, name := range args {
		fam, err := metrics.Lookup(name)
		if err != nil {
			return nil, err
		}
		if _, ok := cfg.Families[name]; !ok {
			return nil, fmt.Errorf("family %s is not configured", name)
		}
		families = append(families, fam)
	}
	return families, nil
}
