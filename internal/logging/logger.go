// Package logging builds the structured loggers used across trendkeeper.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const loggerContextKey contextKey = "logger"

// secretPatterns defines regex patterns for fields that should be redacted.
// CI environments routinely expose tokens (GITHUB_TOKEN, CODECOV_TOKEN).
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i).*_TOKEN$`),
	regexp.MustCompile(`(?i).*_SECRET$`),
	regexp.MustCompile(`(?i).*PASSWORD.*`),
}

// ParseLevel maps "debug", "info", "warn"/"warning" and "error"
// (case-insensitive) to a slog level. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a JSON logger writing to stderr, leaving stdout to command output.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter creates a new structured logger with a custom writer.
// This is useful for testing or custom output destinations.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, handlerOptions(level)))
}

func handlerOptions(level string) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: redactSecrets,
	}
}

// redactSecrets is a ReplaceAttr function that redacts sensitive fields.
func redactSecrets(groups []string, a slog.Attr) slog.Attr {
	for _, pattern := range secretPatterns {
		if pattern.MatchString(a.Key) {
			return slog.Attr{
				Key:   a.Key,
				Value: slog.StringValue("***REDACTED***"),
			}
		}
	}
	return a
}

// WithContext attaches a logger to a context.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext retrieves a logger from the context.
// If no logger is found, it returns a default logger at info level.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return New("info")
}

// WithFields creates a new logger with additional fields.
func WithFields(logger *slog.Logger, fields map[string]any) *slog.Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return logger.With(args...)
}

// WithRun tags every record with the invocation's run id and metric family.
func WithRun(logger *slog.Logger, runID, family string) *slog.Logger {
	return logger.With(slog.String("run_id", runID), slog.String("family", family))
}

// NewFromConfig creates a logger based on configuration settings.
// Supports format (json/text), level (debug/info/warn/error), and output
// (stderr, stdout, discard or a file path). The returned close function
// releases the log file, if any.
func NewFromConfig(format, level, output string) (*slog.Logger, func() error, error) {
	closer := func() error { return nil }

	var writer io.Writer
	switch output {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	case "discard", os.DevNull:
		writer = io.Discard
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		writer = f
		closer = f.Close
	}

	opts := handlerOptions(level)

	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler), closer, nil
}
