package collect

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caevv/trendkeeper/internal/history"
)

// listedTestMarker identifies a test entry in `cargo test -- --list` output.
const listedTestMarker = ": test"

// CountListedTests counts the test entries of a test runner's --list output.
func CountListedTests(r io.Reader) (int, error) {
	count := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), listedTestMarker) {
			count++
		}
	}
	return count, scanner.Err()
}

// TestSources names the saved --list outputs of a run and the fuzz target
// directory. Empty fields are skipped.
type TestSources struct {
	Lib         string
	Doc         string
	Integration []string
	FuzzDir     string
}

// ReadTestCounts builds the test inventory. An unreadable list contributes
// zero tests and a warning.
func ReadTestCounts(src TestSources, logger *slog.Logger) history.TestCounts {
	if logger == nil {
		logger = slog.Default()
	}

	counts := history.TestCounts{
		LibTests: countFile(src.Lib, logger),
		DocTests: countFile(src.Doc, logger),
	}
	for _, path := range src.Integration {
		counts.IntegrationTests += countFile(path, logger)
	}
	counts.FuzzTargets = countFuzzTargets(src.FuzzDir)
	counts.Total = counts.LibTests + counts.DocTests + counts.IntegrationTests
	return counts
}

func countFile(path string, logger *slog.Logger) int {
	if path == "" {
		return 0
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("failed to count tests", slog.String("path", path), slog.String("error", err.Error()))
		return 0
	}
	defer f.Close()

	n, err := CountListedTests(f)
	if err != nil {
		logger.Warn("failed to count tests", slog.String("path", path), slog.String("error", err.Error()))
		return 0
	}
	return n
}

func countFuzzTargets(dir string) int {
	if dir == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.rs"))
	if err != nil {
		return 0
	}
	return len(matches)
}
