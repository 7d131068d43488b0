package collect

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/caevv/trendkeeper/internal/history"
)

// GitTimeout bounds each git invocation.
const GitTimeout = 10 * time.Second

// GitProvenance describes HEAD of the repository at dir, stamped with now.
// Any git failure yields the placeholder commit and message.
func GitProvenance(ctx context.Context, dir string, now time.Time, logger *slog.Logger) history.Provenance {
	if logger == nil {
		logger = slog.Default()
	}

	prov := history.Provenance{
		CommitSHA:     history.UnknownCommit,
		CommitMessage: history.UnknownMessage,
		Timestamp:     history.FormatTimestamp(now),
	}

	sha, err := runGit(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		logger.Warn("git metadata unavailable", slog.String("dir", dir), slog.String("error", err.Error()))
		return prov
	}
	body, err := runGit(ctx, dir, "log", "-1", "--pretty=%B")
	if err != nil {
		logger.Warn("git metadata unavailable", slog.String("dir", dir), slog.String("error", err.Error()))
		return prov
	}

	prov.CommitSHA = sha
	prov.CommitMessage, _, _ = strings.Cut(body, "\n")
	return prov
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, GitTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
