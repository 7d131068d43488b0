// Package hooks runs user-supplied agents after a snapshot is recorded, for
// example to publish the documents or comment on a pull request when a
// metric degrades.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Executor discovers and runs hook agents.
type Executor struct {
	logger *slog.Logger
	agents map[string]string
}

// Params describes the recorded snapshot an agent is run for. Every field is
// exported to the agent as an environment variable.
type Params struct {
	Hook        string
	RunID       string
	Family      string
	CommitSHA   string
	Timestamp   string
	HistoryFile string
	Snapshots   int

	// Degraded lists the metrics whose latest trend is degrading or shrinking.
	Degraded []string

	ConfigJSON string
	ExtraEnv   map[string]string
	TimeoutSec int
}

// Result is the outcome of one agent run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration

	// JSONOutput is the first JSON object printed by the agent, if any.
	JSONOutput map[string]any
}

// New creates an Executor with no agents; call Discover before Execute.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		logger: logger,
		agents: make(map[string]string),
	}
}

// Discover loads agents from the given paths.
func (e *Executor) Discover(paths []string) error {
	agents, err := DiscoverAgents(paths)
	if err != nil {
		return fmt.Errorf("failed to discover agents: %w", err)
	}

	e.agents = agents
	e.logger.Debug("discovered agents",
		slog.Int("count", len(agents)),
		slog.Any("agents", agentNames(agents)))
	return nil
}

// Agents returns the discovered agents keyed by name.
func (e *Executor) Agents() map[string]string {
	return e.agents
}

// Execute runs an agent. A non-zero exit is reported in the Result; only a
// failure to start or a timeout is returned as an error.
func (e *Executor) Execute(ctx context.Context, agentName string, params Params) (*Result, error) {
	agentPath, err := FindAgent(e.agents, agentName)
	if err != nil {
		return nil, err
	}

	execCtx := ctx
	if params.TimeoutSec > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(params.TimeoutSec)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, agentPath)
	cmd.Env = buildEnvironment(params)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log := e.logger.With(
		slog.String("agent", agentName),
		slog.String("hook", params.Hook),
		slog.String("run_id", params.RunID),
		slog.String("family", params.Family))
	log.Info("executing agent", slog.String("path", agentPath))

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) || execCtx.Err() != nil {
			log.Error("agent execution failed", slog.String("error", runErr.Error()))
			return nil, fmt.Errorf("agent execution failed: %w", runErr)
		}
		exitCode = exitErr.ExitCode()
	}

	result := &Result{
		ExitCode:   exitCode,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Duration:   duration,
		JSONOutput: parseJSONOutput(stdout.String()),
	}

	level := slog.LevelInfo
	if exitCode != 0 {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, "agent execution completed",
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", duration))
	if result.Stderr != "" {
		log.Debug("agent stderr", slog.String("stderr", result.Stderr))
	}

	return result, nil
}

// ValidateAgent checks that an agent was discovered and is allowed. An empty
// allow list permits every agent.
func (e *Executor) ValidateAgent(agentName string, allowed []string) error {
	if _, err := FindAgent(e.agents, agentName); err != nil {
		return err
	}
	if len(allowed) == 0 || slices.Contains(allowed, agentName) {
		return nil
	}
	return fmt.Errorf("agent not allowed: %s", agentName)
}

func buildEnvironment(params Params) []string {
	vars := map[string]string{
		"HOOK":             params.Hook,
		"RUN_ID":           params.RunID,
		"FAMILY":           params.Family,
		"COMMIT_SHA":       params.CommitSHA,
		"TIMESTAMP":        params.Timestamp,
		"HISTORY_FILE":     params.HistoryFile,
		"SNAPSHOTS":        strconv.Itoa(params.Snapshots),
		"DEGRADED_METRICS": strings.Join(params.Degraded, ","),
		"CONFIG_JSON":      params.ConfigJSON,
	}
	for k, v := range params.ExtraEnv {
		vars[k] = v
	}

	env := os.Environ()
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env
}

// parseJSONOutput accepts either a stdout that is a single JSON object or
// the first line that parses as one.
func parseJSONOutput(stdout string) map[string]any {
	if stdout == "" {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(stdout), &result); err == nil {
		return result
	}

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			return obj
		}
	}
	return nil
}

func agentNames(agents map[string]string) []string {
	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
