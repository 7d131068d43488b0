package hooks

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/caevv/trendkeeper/internal/config"
	"github.com/caevv/trendkeeper/internal/history"
)

func TestExecuteHooks(t *testing.T) {
	executor, _ := newTestExecutor(t)
	ctx := context.Background()
	params := Params{RunID: "run-123", Family: "coverage", Hook: OnRecord.String(), TimeoutSec: 5}

	t.Run("successful hooks", func(t *testing.T) {
		agents := []config.Agent{
			{Agent: "success.sh", With: map[string]any{"id": 1}},
			{Agent: "success.sh", With: map[string]any{"id": 2}},
		}
		if err := ExecuteHooks(ctx, executor, agents, params, false); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("failure is returned without fail_on_error", func(t *testing.T) {
		agents := []config.Agent{{Agent: "fail.sh"}, {Agent: "success.sh"}}
		if err := ExecuteHooks(ctx, executor, agents, params, false); err == nil {
			t.Error("expected first error to be returned")
		}
	})

	t.Run("fail_on_error stops at the first failure", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "calls.log")
		p := params
		p.ExtraEnv = map[string]string{"LOG_FILE": logFile}

		agents := []config.Agent{{Agent: "fail.sh"}, {Agent: "record.sh"}}
		if err := ExecuteHooks(ctx, executor, agents, p, true); err == nil {
			t.Fatal("expected error with failOnError")
		}
		if _, err := os.Stat(logFile); !os.IsNotExist(err) {
			t.Error("agents after the failure must not run")
		}
	})

	t.Run("unknown agent", func(t *testing.T) {
		if err := ExecuteHooks(ctx, executor, []config.Agent{{Agent: "missing.sh"}}, params, false); err == nil {
			t.Error("expected error for unknown agent")
		}
	})

	t.Run("empty hooks", func(t *testing.T) {
		if err := ExecuteHooks(ctx, executor, nil, params, true); err != nil {
			t.Errorf("empty hooks should not error: %v", err)
		}
	})
}

func TestRun(t *testing.T) {
	executor, _ := newTestExecutor(t)
	hooks := config.Hooks{
		TimeoutSec:  5,
		OnRecord:    []config.Agent{{Agent: "record.sh"}},
		OnDegrading: []config.Agent{{Agent: "record.sh"}},
	}

	calls := func(t *testing.T, degraded []string) []string {
		t.Helper()
		logFile := filepath.Join(t.TempDir(), "calls.log")
		params := Params{
			Family:   "benchmarks",
			Degraded: degraded,
			ExtraEnv: map[string]string{"LOG_FILE": logFile},
		}
		if err := Run(context.Background(), executor, hooks, params); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		data, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatal(err)
		}
		return strings.Fields(string(data))
	}

	if got := calls(t, nil); !reflect.DeepEqual(got, []string{"on_record"}) {
		t.Errorf("without degraded metrics expected only on_record, got %v", got)
	}
	if got := calls(t, []string{"encode"}); !reflect.DeepEqual(got, []string{"on_record", "on_degrading"}) {
		t.Errorf("expected both hooks in order, got %v", got)
	}
}

func TestRunFailOnError(t *testing.T) {
	executor, _ := newTestExecutor(t)
	logFile := filepath.Join(t.TempDir(), "calls.log")
	params := Params{Degraded: []string{"encode"}, ExtraEnv: map[string]string{"LOG_FILE": logFile}}

	hooks := config.Hooks{
		TimeoutSec:  5,
		OnRecord:    []config.Agent{{Agent: "fail.sh"}},
		OnDegrading: []config.Agent{{Agent: "record.sh"}},
	}

	if err := Run(context.Background(), executor, hooks, params); err == nil {
		t.Error("expected the on_record failure to be reported")
	}
	if _, err := os.Stat(logFile); err != nil {
		t.Error("on_degrading should still run without fail_on_error")
	}

	os.Remove(logFile)
	hooks.FailOnError = true
	if err := Run(context.Background(), executor, hooks, params); err == nil {
		t.Error("expected error with fail_on_error")
	}
	if _, err := os.Stat(logFile); !os.IsNotExist(err) {
		t.Error("on_degrading must not run after a failure with fail_on_error")
	}
}

func TestValidateHooks(t *testing.T) {
	executor, _ := newTestExecutor(t)

	valid := config.Hooks{
		OnRecord:    []config.Agent{{Agent: "success.sh"}},
		OnDegrading: []config.Agent{{Agent: "env.sh"}},
	}
	if err := ValidateHooks(executor, valid); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	missing := config.Hooks{OnDegrading: []config.Agent{{Agent: "missing.sh"}}}
	if err := ValidateHooks(executor, missing); err == nil {
		t.Error("expected error for unknown agent")
	}

	restricted := valid
	restricted.AllowedAgents = []string{"success.sh"}
	if err := ValidateHooks(executor, restricted); err == nil {
		t.Error("expected error for agent outside the allow list")
	}
}

func TestDegraded(t *testing.T) {
	h := history.New()
	h.Summary = map[string]history.Summary{
		"parse":       {Trend: &history.Trend{Direction: history.Degrading, Change: 12.5}},
		"encode":      {Trend: &history.Trend{Direction: history.Improving, Change: -8}},
		"total_tests": {Trend: &history.Trend{Direction: history.Shrinking, Change: -3}},
		"decode":      {Trend: &history.Trend{Direction: history.Stable}},
		"new_bench":   {},
	}

	want := []string{"parse", "total_tests"}
	if got := Degraded(h); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := Degraded(nil); got != nil {
		t.Errorf("expected nil for nil history, got %v", got)
	}
}

func TestHookType_String(t *testing.T) {
	if OnRecord.String() != "on_record" || OnDegrading.String() != "on_degrading" {
		t.Errorf("unexpected hook names %s, %s", OnRecord, OnDegrading)
	}
}
