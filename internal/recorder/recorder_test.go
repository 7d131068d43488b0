package recorder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caevv/trendkeeper/internal/history"
	"github.com/caevv/trendkeeper/internal/metrics"
	"github.com/caevv/trendkeeper/internal/retention"
	"github.com/caevv/trendkeeper/internal/schema"
	"github.com/caevv/trendkeeper/internal/store"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

type fixture struct {
	dir   string
	store store.Store
	rec   *Recorder
}

func (f fixture) historyPath(family string) string {
	return filepath.Join(f.dir, family+"-history.json")
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.NewStore(store.Options{
		Driver: "json",
		HistoryFiles: map[string]string{
			metrics.BenchmarksFamily: filepath.Join(dir, "benchmarks-history.json"),
			metrics.CoverageFamily:   filepath.Join(dir, "coverage-history.json"),
		},
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	rec, err := New(Options{
		Store:  st,
		Policy: retention.DefaultPolicy(),
		Documents: map[string]Documents{
			metrics.BenchmarksFamily: {Latest: filepath.Join(dir, "benchmarks.json")},
			metrics.CoverageFamily: {
				Latest: filepath.Join(dir, "coverage.json"),
				Stats:  filepath.Join(dir, "stats.json"),
			},
		},
		Logger: logger,
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)

	return fixture{dir: dir, store: st, rec: rec}
}

func daysAgo(d int) string {
	return history.FormatTimestamp(now.Add(-time.Duration(d) * 24 * time.Hour))
}

func benchSnapshot(ts string, mean float64) history.Snapshot {
	return history.Snapshot{
		Timestamp:     ts,
		CommitSHA:     "abc123",
		CommitMessage: "bench",
		Benchmarks: []history.BenchmarkRecord{
			{Name: "lex", Mean: mean, Median: mean, StdDev: 1, Unit: "ns"},
		},
	}
}

func coverageSnapshot(ts string, line float64, tests int) history.Snapshot {
	return history.Snapshot{
		Timestamp: ts,
		CommitSHA: "def456",
		Coverage:  &history.CoverageMetrics{LineCoverage: line, FunctionCoverage: 90, RegionCoverage: 80},
		Tests:     &history.TestCounts{Total: tests, LibTests: tests},
		Details: &history.CoverageDetails{
			Lines: history.CoverageTotal{Covered: 850, Total: 1000, Percent: line},
		},
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Policy: retention.DefaultPolicy()})
	assert.Error(t, err)

	st, err := store.NewStore(store.Options{
		Driver:       "json",
		HistoryFiles: map[string]string{metrics.CoverageFamily: filepath.Join(t.TempDir(), "h.json")},
	})
	require.NoError(t, err)
	_, err = New(Options{Store: st, Policy: retention.Policy{FullDays: 30, WeeklyDays: 10, MonthlyDays: 365}})
	assert.Error(t, err)
}

func TestRecord_Coverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.Record(ctx, metrics.CoverageFamily, coverageSnapshot(daysAgo(1), 85.0, 100))
	require.NoError(t, err)
	res, err := f.rec.Record(ctx, metrics.CoverageFamily, coverageSnapshot(daysAgo(0), 86.2, 110))
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.True(t, res.Written)
	assert.Equal(t, 2, res.Retention.Kept)
	require.Len(t, res.History.Snapshots, 2)
	assert.Equal(t, daysAgo(0), res.History.LastUpdated)

	line := res.History.Summary[metrics.LineCoverage]
	require.NotNil(t, line.Trend)
	assert.Equal(t, history.Improving, line.Trend.Direction)
	assert.InDelta(t, 1.2, line.Trend.Change, 1e-9)
	require.NotNil(t, line.Best)
	assert.Equal(t, 86.2, *line.Best)

	tests := res.History.Summary[metrics.TestCount]
	require.NotNil(t, tests.Trend)
	assert.Equal(t, history.Growing, tests.Trend.Direction)
	assert.Nil(t, tests.Best)

	stored := f.store.Load(metrics.CoverageFamily)
	assert.Equal(t, res.History.Snapshots, stored.Snapshots)

	var latest history.CoverageDocument
	readJSON(t, filepath.Join(f.dir, "coverage.json"), &latest)
	assert.Equal(t, daysAgo(0), latest.Timestamp)
	assert.Equal(t, 86.2, latest.Coverage.LineCoverage)
	assert.Equal(t, 110, latest.Tests.Total)

	var stats history.Stats
	readJSON(t, filepath.Join(f.dir, "stats.json"), &stats)
	assert.Equal(t, history.Stats{
		TestCount:        110,
		LibTests:         110,
		LineCoverage:     86.2,
		FunctionCoverage: 90,
		RegionCoverage:   80,
	}, stats)
}

func TestRecord_Benchmarks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.Record(ctx, metrics.BenchmarksFamily, benchSnapshot(daysAgo(2), 1000))
	require.NoError(t, err)
	res, err := f.rec.Record(ctx, metrics.BenchmarksFamily, benchSnapshot(daysAgo(1), 1100))
	require.NoError(t, err)

	lex := res.History.Summary["lex"]
	require.NotNil(t, lex.Trend)
	assert.Equal(t, history.Degrading, lex.Trend.Direction)
	assert.InDelta(t, 10.0, lex.Trend.Change, 1e-9)
	assert.True(t, lex.Latest.IsTiming())
	assert.Len(t, lex.History, 2)

	var latest history.BenchmarkDocument
	readJSON(t, filepath.Join(f.dir, "benchmarks.json"), &latest)
	assert.Equal(t, 1, latest.Count)
	assert.Equal(t, 1100.0, latest.Benchmarks[0].Mean)

	_, err = os.Stat(filepath.Join(f.dir, "stats.json"))
	assert.True(t, os.IsNotExist(err), "benchmarks must not write the stats document")
}

func TestRecord_AppliesRetention(t *testing.T) {
	f := newFixture(t)

	// Mon 2025-05-19 and Wed 2025-05-21 share ISO week 21 in the weekly tier.
	seed := history.New()
	seed = history.Append(seed, benchSnapshot("2025-05-19T08:00:00Z", 900))
	seed = history.Append(seed, benchSnapshot("2025-05-21T08:00:00Z", 950))
	seed = history.Append(seed, benchSnapshot("not-a-timestamp", 1))
	require.NoError(t, f.store.Save(metrics.BenchmarksFamily, seed))

	res, err := f.rec.Record(context.Background(), metrics.BenchmarksFamily, benchSnapshot(daysAgo(0), 1000))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Retention.Kept)
	assert.Equal(t, 2, res.Retention.Removed)
	assert.Equal(t, 1, res.Retention.Malformed)
	assert.Equal(t, retention.Breakdown{Full: 1, Weekly: 1}, res.Retention.Breakdown)

	require.Len(t, res.History.Snapshots, 2)
	assert.Equal(t, "2025-05-21T08:00:00Z", res.History.Snapshots[0].Timestamp)
	assert.Equal(t, daysAgo(0), res.History.Snapshots[1].Timestamp)
}

func TestRecord_RejectsBeforeStoreAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.Record(ctx, metrics.BenchmarksFamily, history.Snapshot{Timestamp: daysAgo(0)})
	assert.ErrorIs(t, err, ErrEmptySnapshot)

	_, err = f.rec.Record(ctx, metrics.CoverageFamily, benchSnapshot(daysAgo(0), 1))
	assert.ErrorIs(t, err, ErrEmptySnapshot)

	_, err = f.rec.Record(ctx, "latency", benchSnapshot(daysAgo(0), 1))
	assert.ErrorIs(t, err, metrics.ErrUnknownFamily)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.rec.Record(canceled, metrics.BenchmarksFamily, benchSnapshot(daysAgo(0), 1))
	assert.ErrorIs(t, err, context.Canceled)

	for _, family := range metrics.Names() {
		_, statErr := os.Stat(f.historyPath(family))
		assert.True(t, os.IsNotExist(statErr), "%s history must not be written", family)
	}
}

func TestPrune(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed := history.New()
	for _, d := range []int{60, 59, 58, 3} {
		seed = history.Append(seed, benchSnapshot(daysAgo(d), float64(1000+d)))
	}
	require.NoError(t, f.store.Save(metrics.BenchmarksFamily, seed))

	dry, err := f.rec.Prune(ctx, metrics.BenchmarksFamily, true)
	require.NoError(t, err)
	assert.False(t, dry.Written)
	assert.Less(t, dry.Retention.Kept, 4)
	assert.Len(t, f.store.Load(metrics.BenchmarksFamily).Snapshots, 4, "dry run must not save")

	res, err := f.rec.Prune(ctx, metrics.BenchmarksFamily, false)
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.Equal(t, dry.Retention, res.Retention)

	stored := f.store.Load(metrics.BenchmarksFamily)
	assert.Len(t, stored.Snapshots, res.Retention.Kept)
	assert.Contains(t, stored.Summary, "lex")

	again, err := f.rec.Prune(ctx, metrics.BenchmarksFamily, false)
	require.NoError(t, err)
	assert.Zero(t, again.Retention.Removed, "pruning is idempotent")
}

func TestRebuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed := history.New()
	seed = history.Append(seed, coverageSnapshot(daysAgo(2), 80, 10))
	seed = history.Append(seed, coverageSnapshot(daysAgo(1), 81, 10))
	require.NoError(t, f.store.Save(metrics.CoverageFamily, seed))

	res, err := f.rec.Rebuild(ctx, metrics.CoverageFamily)
	require.NoError(t, err)
	assert.Len(t, res.History.Snapshots, 2)

	stored := f.store.Load(metrics.CoverageFamily)
	require.Contains(t, stored.Summary, metrics.LineCoverage)
	assert.Equal(t, history.Scalar(81), stored.Summary[metrics.LineCoverage].Latest)

	_, err = f.rec.Rebuild(ctx, "unknown")
	assert.ErrorIs(t, err, metrics.ErrUnknownFamily)
}

func TestRebuild_SkipsMalformedAndOrdersSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A hand-edited document: out of order, with one unparseable entry.
	seed := history.New()
	seed = history.Append(seed, coverageSnapshot(daysAgo(1), 83, 12))
	seed = history.Append(seed, coverageSnapshot("last tuesday", 99, 99))
	seed = history.Append(seed, coverageSnapshot(daysAgo(3), 80, 10))
	seed = history.Append(seed, coverageSnapshot(daysAgo(2), 81, 10))
	require.NoError(t, f.store.Save(metrics.CoverageFamily, seed))

	res, err := f.rec.Rebuild(ctx, metrics.CoverageFamily)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retention.Malformed)

	stored := f.store.Load(metrics.CoverageFamily)
	assert.Len(t, stored.Snapshots, 4, "rebuild never prunes")
	assert.Equal(t, "last tuesday", stored.Snapshots[1].Timestamp)

	line := stored.Summary[metrics.LineCoverage]
	assert.Equal(t, history.Scalar(83), line.Latest)
	require.Len(t, line.History, 3)
	assert.Equal(t, []string{daysAgo(3), daysAgo(2), daysAgo(1)},
		[]string{line.History[0].Timestamp, line.History[1].Timestamp, line.History[2].Timestamp})
	require.NotNil(t, line.Trend)
	assert.Equal(t, history.Improving, line.Trend.Direction)
	assert.Equal(t, 2.0, line.Trend.Change)

	// The malformed snapshot itself is kept, so validate the summary alone.
	stored.Snapshots = []history.Snapshot{}
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	result, err := schema.Validate(data)
	require.NoError(t, err)
	assert.True(t, result.Valid(), "%v", result.Violations)
}
