package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/caevv/trendkeeper/internal/config"
	"github.com/caevv/trendkeeper/internal/history"
)

// HookType names the point at which a group of agents runs.
type HookType string

const (
	// OnRecord runs after every successful record.
	OnRecord HookType = "on_record"

	// OnDegrading runs after a record that leaves at least one metric
	// degrading or shrinking.
	OnDegrading HookType = "on_degrading"
)

func (h HookType) String() string {
	return string(h)
}

// ExecuteHooks runs the agents in order. With failOnError the first failure
// stops the run; otherwise every agent runs and the first failure is returned.
func ExecuteHooks(
	ctx context.Context,
	executor *Executor,
	agents []config.Agent,
	params Params,
	failOnError bool,
) error {
	if len(agents) == 0 {
		return nil
	}

	log := executor.logger.With(
		slog.String("hook", params.Hook),
		slog.String("run_id", params.RunID),
		slog.String("family", params.Family))
	log.Debug("executing hooks", slog.Int("count", len(agents)))

	var firstError error
	fail := func(err error) error {
		if failOnError {
			return err
		}
		if firstError == nil {
			firstError = err
		}
		return nil
	}

	for i, agent := range agents {
		configJSON, err := json.Marshal(agent.With)
		if err != nil {
			log.Error("failed to marshal hook config", slog.String("agent", agent.Agent), slog.String("error", err.Error()))
			if err := fail(fmt.Errorf("failed to marshal config for agent %s: %w", agent.Agent, err)); err != nil {
				return err
			}
			continue
		}

		agentParams := params
		agentParams.ConfigJSON = string(configJSON)

		result, err := executor.Execute(ctx, agent.Agent, agentParams)
		if err != nil {
			log.Error("hook execution failed",
				slog.String("agent", agent.Agent),
				slog.Int("hook_index", i),
				slog.String("error", err.Error()))
			if err := fail(fmt.Errorf("hook %s (agent: %s) failed: %w", params.Hook, agent.Agent, err)); err != nil {
				return err
			}
			continue
		}

		if result.ExitCode != 0 {
			log.Warn("hook returned non-zero exit code",
				slog.String("agent", agent.Agent),
				slog.Int("hook_index", i),
				slog.Int("exit_code", result.ExitCode),
				slog.String("stderr", result.Stderr))
			if err := fail(fmt.Errorf("hook %s (agent: %s) exited with code %d", params.Hook, agent.Agent, result.ExitCode)); err != nil {
				return err
			}
			continue
		}

		log.Info("hook executed successfully",
			slog.String("agent", agent.Agent),
			slog.Int("hook_index", i),
			slog.Duration("duration", result.Duration))
		if result.JSONOutput != nil {
			log.Debug("hook output", slog.String("agent", agent.Agent), slog.Any("output", result.JSONOutput))
		}
	}

	return firstError
}

// ValidateHooks checks every configured agent against the discovered set.
func ValidateHooks(executor *Executor, hooks config.Hooks) error {
	for _, hookType := range []HookType{OnRecord, OnDegrading} {
		for i, agent := range ByType(hooks, hookType) {
			if err := executor.ValidateAgent(agent.Agent, hooks.AllowedAgents); err != nil {
				return fmt.Errorf("invalid agent in %s hook #%d: %w", hookType, i, err)
			}
		}
	}
	return nil
}

// ByType returns the agents configured for a hook type.
func ByType(hooks config.Hooks, hookType HookType) []config.Agent {
	switch hookType {
	case OnRecord:
		return hooks.OnRecord
	case OnDegrading:
		return hooks.OnDegrading
	default:
		return nil
	}
}

// Degraded lists, sorted, the metrics whose summary trend is degrading or
// shrinking.
func Degraded(h *history.History) []string {
	if h == nil {
		return nil
	}
	var names []string
	for name, s := range h.Summary {
		if s.Trend == nil {
			continue
		}
		if s.Trend.Direction == history.Degrading || s.Trend.Direction == history.Shrinking {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Run executes the on_record agents and, when params.Degraded is not empty,
// the on_degrading agents. Both groups run even if the first one fails
// unless hooks.FailOnError is set.
func Run(ctx context.Context, executor *Executor, hooks config.Hooks, params Params) error {
	params.TimeoutSec = hooks.TimeoutSec

	params.Hook = OnRecord.String()
	err := ExecuteHooks(ctx, executor, hooks.OnRecord, params, hooks.FailOnError)
	if err != nil && hooks.FailOnError {
		return err
	}

	if len(params.Degraded) == 0 {
		return err
	}

	params.Hook = OnDegrading.String()
	if degErr := ExecuteHooks(ctx, executor, hooks.OnDegrading, params, hooks.FailOnError); err == nil {
		err = degErr
	}
	return err
}
