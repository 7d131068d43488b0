// Package collect reads the artifacts produced by the benchmark runner, the
// coverage tool, the test runner and version control, and turns them into
// snapshot payloads.
package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/caevv/trendkeeper/internal/history"
)

// ErrNoBenchmarks is returned when no benchmark estimates could be read.
var ErrNoBenchmarks = errors.New("no benchmark results found")

const (
	estimatesFile   = "estimates.json"
	currentRunDir   = "new"
	criterionUnit   = "ns"
	maxParallelRead = 8
)

type pointEstimate struct {
	PointEstimate float64 `json:"point_estimate"`
}

type criterionEstimates struct {
	Mean   pointEstimate `json:"mean"`
	Median pointEstimate `json:"median"`
	StdDev pointEstimate `json:"std_dev"`
}

// ReadCriterion collects every <bench>/new/estimates.json below root. The
// benchmark name is the directory two levels above the file. Files that
// cannot be read are logged and skipped. Records are sorted by name.
func ReadCriterion(ctx context.Context, root string, logger *slog.Logger) ([]history.BenchmarkRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	paths, err := findEstimates(root)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoBenchmarks, root)
	}

	found := make([]*history.BenchmarkRecord, len(paths))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRead)
	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			rec, err := readEstimates(path)
			if err != nil {
				logger.Warn("failed to read benchmark estimates",
					slog.String("path", path),
					slog.String("error", err.Error()))
				return nil
			}
			found[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]history.BenchmarkRecord, 0, len(found))
	for _, rec := range found {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoBenchmarks, root)
	}

	slices.SortStableFunc(records, func(a, b history.BenchmarkRecord) int {
		return strings.Compare(a.Name, b.Name)
	})
	return records, nil
}

// findEstimates returns the estimates files of the current run in walk
// (lexical) order. A missing root yields no paths.
func findEstimates(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || d.Name() != estimatesFile {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) == currentRunDir {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return paths, nil
}

func readEstimates(path string) (*history.BenchmarkRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var est criterionEstimates
	if err := json.Unmarshal(data, &est); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &history.BenchmarkRecord{
		Name:   filepath.Base(filepath.Dir(filepath.Dir(path))),
		Mean:   est.Mean.PointEstimate,
		Median: est.Median.PointEstimate,
		StdDev: est.StdDev.PointEstimate,
		Unit:   criterionUnit,
	}, nil
}
