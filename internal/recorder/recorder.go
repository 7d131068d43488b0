// Package recorder drives one history update: load the stored history,
// append the new snapshot, apply retention, rebuild the summary and persist
// the result together with the latest-only documents.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/caevv/trendkeeper/internal/history"
	"github.com/caevv/trendkeeper/internal/logging"
	"github.com/caevv/trendkeeper/internal/metrics"
	"github.com/caevv/trendkeeper/internal/retention"
	"github.com/caevv/trendkeeper/internal/store"
	"github.com/caevv/trendkeeper/internal/summary"
)

// ErrEmptySnapshot is returned when a snapshot carries no payload for its family.
var ErrEmptySnapshot = errors.New("snapshot has no measurements for family")

// Documents are the side files regenerated on every recorded run. Empty
// paths are not written.
type Documents struct {
	Latest string
	Stats  string
}

// Options configures a Recorder.
type Options struct {
	Store     store.Store
	Policy    retention.Policy
	TailSize  int
	Documents map[string]Documents
	Logger    *slog.Logger

	// Now is the retention reference clock. Defaults to time.Now.
	Now func() time.Time
}

// Recorder updates metric histories. It assumes it is the only writer.
type Recorder struct {
	store     store.Store
	policy    retention.Policy
	tailSize  int
	documents map[string]Documents
	logger    *slog.Logger
	now       func() time.Time
}

// Result describes the outcome of one operation.
type Result struct {
	RunID     string
	Family    string
	History   *history.History
	Retention retention.Stats
	// Written is false for dry runs.
	Written bool
}

// New validates opts and creates a Recorder.
func New(opts Options) (*Recorder, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retention policy: %w", err)
	}
	if opts.TailSize <= 0 {
		opts.TailSize = summary.DefaultTailSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Recorder{
		store:     opts.Store,
		policy:    opts.Policy,
		tailSize:  opts.TailSize,
		documents: opts.Documents,
		logger:    opts.Logger,
		now:       opts.Now,
	}, nil
}

// Record appends snap to the family's history, prunes, summarizes and
// persists. The latest-only document (and, for coverage, the stats
// document) is written after the history.
func (r *Recorder) Record(ctx context.Context, family string, snap history.Snapshot) (*Result, error) {
	fam, err := metrics.Lookup(family)
	if err != nil {
		return nil, err
	}
	latest, stats, err := latestDocuments(family, snap)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := logging.WithRun(r.logger, runID, family)

	h := history.Append(r.store.Load(family), snap)
	result := r.refresh(logger, fam, h)
	result.RunID = runID

	if err := r.store.Save(family, result.History); err != nil {
		return nil, fmt.Errorf("save %s history: %w", family, err)
	}
	if err := r.writeDocuments(logger, family, latest, stats); err != nil {
		return nil, err
	}
	result.Written = true

	logger.Info("recorded snapshot",
		slog.String("commit", snap.CommitSHA),
		slog.Int("kept", result.Retention.Kept),
		slog.Int("removed", result.Retention.Removed),
		slog.Int("metrics", len(result.History.Summary)))
	return result, nil
}

// Prune applies retention and rebuilds the summary of the stored history
// without appending. With dryRun nothing is saved.
func (r *Recorder) Prune(ctx context.Context, family string, dryRun bool) (*Result, error) {
	fam, err := metrics.Lookup(family)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := logging.WithRun(r.logger, runID, family)

	result := r.refresh(logger, fam, r.store.Load(family))
	result.RunID = runID

	if dryRun {
		logger.Info("dry run, history not saved",
			slog.Int("kept", result.Retention.Kept),
			slog.Int("removed", result.Retention.Removed))
		return result, nil
	}
	if err := r.store.Save(family, result.History); err != nil {
		return nil, fmt.Errorf("save %s history: %w", family, err)
	}
	result.Written = true

	logger.Info("pruned history",
		slog.Int("kept", result.Retention.Kept),
		slog.Int("removed", result.Retention.Removed))
	return result, nil
}

// Rebuild recomputes the summary from the stored snapshots. Snapshots are
// left untouched; entries with a malformed timestamp are skipped and the
// rest are summarized in chronological order.
func (r *Recorder) Rebuild(ctx context.Context, family string) (*Result, error) {
	fam, err := metrics.Lookup(family)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := logging.WithRun(r.logger, runID, family)

	h := r.store.Load(family)
	ordered, malformed := chronological(logger, h.Snapshots)
	h.Summary = summary.Build(fam, ordered, r.tailSize)
	if err := r.store.Save(family, h); err != nil {
		return nil, fmt.Errorf("save %s history: %w", family, err)
	}

	logger.Info("rebuilt summary",
		slog.Int("metrics", len(h.Summary)),
		slog.Int("malformed", malformed))
	return &Result{
		RunID:     runID,
		Family:    family,
		History:   h,
		Retention: retention.Stats{Kept: len(h.Snapshots), Malformed: malformed},
		Written:   true,
	}, nil
}

// chronological returns a copy of snapshots without malformed timestamps,
// stably sorted by time.
func chronological(logger *slog.Logger, snapshots []history.Snapshot) ([]history.Snapshot, int) {
	type stamped struct {
		at   time.Time
		snap history.Snapshot
	}

	valid := make([]stamped, 0, len(snapshots))
	malformed := 0
	for _, s := range snapshots {
		at, err := s.Time()
		if err != nil {
			logger.Warn("skipping snapshot with malformed timestamp",
				slog.String("timestamp", s.Timestamp),
				slog.String("error", err.Error()))
			malformed++
			continue
		}
		valid = append(valid, stamped{at: at, snap: s})
	}
	slices.SortStableFunc(valid, func(a, b stamped) int { return a.at.Compare(b.at) })

	out := make([]history.Snapshot, len(valid))
	for i, v := range valid {
		out[i] = v.snap
	}
	return out, malformed
}

// refresh prunes h in place and replaces its summary.
func (r *Recorder) refresh(logger *slog.Logger, fam metrics.Family, h *history.History) *Result {
	kept, stats := retention.ApplySnapshots(r.policy, h.Snapshots, r.now())
	for _, err := range stats.Errors {
		logger.Warn("dropping snapshot with malformed timestamp", slog.String("error", err.Error()))
	}

	h.Snapshots = kept
	h.Summary = summary.Build(fam, kept, r.tailSize)
	return &Result{Family: fam.Name, History: h, Retention: stats}
}

func (r *Recorder) writeDocuments(logger *slog.Logger, family string, latest, stats any) error {
	docs := r.documents[family]
	if docs.Latest != "" {
		if err := store.WriteDocument(docs.Latest, latest); err != nil {
			return fmt.Errorf("write latest %s document: %w", family, err)
		}
		logger.Debug("wrote latest document", slog.String("path", docs.Latest))
	}
	if docs.Stats != "" && stats != nil {
		if err := store.WriteDocument(docs.Stats, stats); err != nil {
			return fmt.Errorf("write %s stats document: %w", family, err)
		}
		logger.Debug("wrote stats document", slog.String("path", docs.Stats))
	}
	return nil
}

// latestDocuments derives the latest-only document of the run and, for
// coverage, the combined stats document.
func latestDocuments(family string, snap history.Snapshot) (latest, stats any, err error) {
	switch family {
	case metrics.BenchmarksFamily:
		if len(snap.Benchmarks) == 0 {
			return nil, nil, fmt.Errorf("%w %s", ErrEmptySnapshot, family)
		}
		return history.NewBenchmarkDocument(snap.Benchmarks), nil, nil
	case metrics.CoverageFamily:
		if snap.Coverage == nil {
			return nil, nil, fmt.Errorf("%w %s", ErrEmptySnapshot, family)
		}
		doc := history.CoverageDocument{Timestamp: snap.Timestamp, Coverage: *snap.Coverage}
		if snap.Tests != nil {
			doc.Tests = *snap.Tests
		}
		if snap.Details != nil {
			doc.Details = *snap.Details
		}
		return doc, history.NewStats(doc.Tests, doc.Coverage), nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", metrics.ErrUnknownFamily, family)
	}
}
