package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logFunc   func(*slog.Logger)
		shouldLog bool
	}{
		{"debug level logs debug", "debug", func(l *slog.Logger) { l.Debug("m") }, true},
		{"info level skips debug", "info", func(l *slog.Logger) { l.Debug("m") }, false},
		{"warn level skips info", "warn", func(l *slog.Logger) { l.Info("m") }, false},
		{"warn level logs warnings", "warn", func(l *slog.Logger) { l.Warn("m") }, true},
		{"error level logs errors", "error", func(l *slog.Logger) { l.Error("m") }, true},
		{"invalid level defaults to info", "invalid", func(l *slog.Logger) { l.Info("m") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(NewWithWriter(&buf, tt.level))

			output := buf.String()
			if tt.shouldLog && output == "" {
				t.Error("expected log output, got none")
			}
			if !tt.shouldLog && output != "" {
				t.Errorf("expected no log output, got: %s", output)
			}
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		key          string
		shouldRedact bool
	}{
		{"GITHUB_TOKEN", true},
		{"codecov_token", true},
		{"SIGNING_SECRET", true},
		{"PASSWORD", true},
		{"db_password_file", true},
		{"commit_sha", false},
		{"family", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var buf bytes.Buffer
			NewWithWriter(&buf, "info").Info("test", tt.key, "value-123")

			entry := decodeLine(t, &buf)
			got, ok := entry[tt.key]
			if !ok {
				t.Fatalf("expected field %s in log output", tt.key)
			}
			if tt.shouldRedact && got != "***REDACTED***" {
				t.Errorf("expected redacted value, got: %v", got)
			}
			if !tt.shouldRedact && got != "value-123" {
				t.Errorf("expected original value, got: %v", got)
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	ctx := WithContext(context.Background(), logger)
	FromContext(ctx).Info("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Error("expected message in log output")
	}
}

func TestFromContextDefault(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected default logger, got nil")
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := WithFields(NewWithWriter(&buf, "info"), map[string]any{
		"family":    "coverage",
		"snapshots": 3,
	})
	logger.Info("recorded")

	entry := decodeLine(t, &buf)
	if entry["family"] != "coverage" {
		t.Errorf("expected family=coverage, got %v", entry["family"])
	}
	if entry["snapshots"] != float64(3) {
		t.Errorf("expected snapshots=3, got %v", entry["snapshots"])
	}
}

func TestWithRun(t *testing.T) {
	var buf bytes.Buffer
	WithRun(NewWithWriter(&buf, "info"), "run-1", "benchmarks").Info("pruned")

	entry := decodeLine(t, &buf)
	if entry["run_id"] != "run-1" || entry["family"] != "benchmarks" {
		t.Errorf("unexpected run fields: %v", entry)
	}
	if entry["msg"] != "pruned" {
		t.Errorf("expected msg=pruned, got %v", entry["msg"])
	}
}

func TestNewFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trendkeeper.log")

	logger, closeLog, err := NewFromConfig("text", "debug", path)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Debug("written to file", "family", "coverage")
	if err := closeLog(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `msg="written to file"`) {
		t.Errorf("expected text-format record, got %q", data)
	}
}

func TestNewFromConfigStreams(t *testing.T) {
	for _, output := range []string{"", "stderr", "stdout", "discard"} {
		logger, closeLog, err := NewFromConfig("json", "info", output)
		if err != nil {
			t.Fatalf("NewFromConfig(%q): %v", output, err)
		}
		if logger == nil {
			t.Fatalf("NewFromConfig(%q) returned nil logger", output)
		}
		if err := closeLog(); err != nil {
			t.Errorf("close for %q: %v", output, err)
		}
	}
}

func TestNewFromConfigBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "log.txt")
	if _, _, err := NewFromConfig("json", "info", path); err == nil {
		t.Fatal("expected error for unwritable log path")
	}
}
