package hooks

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// writeAgent creates an executable shell script in dir.
func writeAgent(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestExecutor discovers the standard test agents in a fresh directory.
func newTestExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	dir := t.TempDir()
	writeAgent(t, dir, "success.sh", `echo "hook $HOOK"
echo '{"status":"ok"}'
`)
	writeAgent(t, dir, "fail.sh", `echo "failed" >&2
exit 1
`)
	writeAgent(t, dir, "env.sh", `echo "FAMILY=$FAMILY"
echo "RUN_ID=$RUN_ID"
echo "HOOK=$HOOK"
echo "SNAPSHOTS=$SNAPSHOTS"
echo "DEGRADED_METRICS=$DEGRADED_METRICS"
echo "CONFIG_JSON=$CONFIG_JSON"
echo "EXTRA=$EXTRA"
`)
	// record appends the hook name to $LOG_FILE so tests can assert order.
	writeAgent(t, dir, "record.sh", `echo "$HOOK" >> "$LOG_FILE"
`)
	writeAgent(t, dir, "slow.sh", `exec sleep 5
`)

	executor := New(quietLogger())
	if err := executor.Discover([]string{dir}); err != nil {
		t.Fatal(err)
	}
	return executor, dir
}
