package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/caevv/trendkeeper/internal/collect"
	"github.com/caevv/trendkeeper/internal/config"
	"github.com/caevv/trendkeeper/internal/hooks"
	"github.com/caevv/trendkeeper/internal/history"
	"github.com/caevv/trendkeeper/internal/metrics"
	"github.com/caevv/trendkeeper/internal/recorder"
	"github.com/caevv/trendkeeper/internal/report"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a snapshot of the current CI run",
	Long: `Record collects the metrics of the current run, appends them to the
family's history, applies the retention policy, rebuilds the summary and
writes the latest-only documents. Configured hooks run afterwards:
on_record every time, on_degrading when a metric's trend is degrading or
shrinking.

Collection happens before the history is touched: when a collector fails,
nothing is written.`,
}

var recordBenchmarksCmd = &cobra.Command{
	Use:   "benchmarks",
	Short: "Record Criterion benchmark results",
	Long: `Record benchmark timings from Criterion's estimates files.

Example:
  trendkeeper record benchmarks --criterion-dir target/criterion`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		in := benchmarkInput{}
		in.CriterionDir, _ = cmd.Flags().GetString("criterion-dir")
		in.RepoDir, _ = cmd.Flags().GetString("repo")

		_, err = recordBenchmarks(cmd.Context(), cfg, in, cmd.OutOrStdout())
		return err
	},
}

var recordCoverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Record llvm-cov coverage and test counts",
	Long: `Record coverage percentages from an llvm-cov JSON export together with
the test inventory taken from saved "cargo test -- --list" outputs.

Example:
  trendkeeper record coverage --llvm-cov coverage.json \
    --lib-tests lib.txt --doc-tests doc.txt --integration-tests tests/*.txt`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		in := coverageInput{}
		in.LLVMCov, _ = cmd.Flags().GetString("llvm-cov")
		in.Tests.Lib, _ = cmd.Flags().GetString("lib-tests")
		in.Tests.Doc, _ = cmd.Flags().GetString("doc-tests")
		in.Tests.Integration, _ = cmd.Flags().GetStringSlice("integration-tests")
		in.Tests.FuzzDir, _ = cmd.Flags().GetString("fuzz-dir")
		in.RepoDir, _ = cmd.Flags().GetString("repo")

		_, err = recordCoverage(cmd.Context(), cfg, in, cmd.OutOrStdout())
		return err
	},
}

func init() {
	recordBenchmarksCmd.Flags().String("criterion-dir", "target/criterion", "Criterion output directory")
	recordBenchmarksCmd.Flags().String("repo", ".", "Repository used for commit information")

	recordCoverageCmd.Flags().String("llvm-cov", "", "llvm-cov JSON export (summary)")
	recordCoverageCmd.Flags().String("lib-tests", "", "Saved --list output of the library tests")
	recordCoverageCmd.Flags().String("doc-tests", "", "Saved --list output of the doc tests")
	recordCoverageCmd.Flags().StringSlice("integration-tests", nil, "Saved --list outputs of the integration test targets")
	recordCoverageCmd.Flags().String("fuzz-dir", "fuzz/fuzz_targets", "Directory of fuzz targets")
	recordCoverageCmd.Flags().String("repo", ".", "Repository used for commit information")
	recordCoverageCmd.MarkFlagRequired("llvm-cov")

	recordCmd.AddCommand(recordBenchmarksCmd)
	recordCmd.AddCommand(recordCoverageCmd)
}

type benchmarkInput struct {
	CriterionDir string
	RepoDir      string
}

type coverageInput struct {
	LLVMCov string
	Tests   collect.TestSources
	RepoDir string
}

func recordBenchmarks(ctx context.Context, cfg *config.Config, in benchmarkInput, out io.Writer) (*recorder.Result, error) {
	records, err := collect.ReadCriterion(ctx, in.CriterionDir, logger)
	if err != nil {
		return nil, fmt.Errorf("collect benchmarks: %w", err)
	}
	logger.Info("collected benchmarks", "count", len(records), "dir", in.CriterionDir)

	snap := collect.GitProvenance(ctx, in.RepoDir, nowFunc(), logger).Snapshot()
	snap.Benchmarks = records

	return record(ctx, cfg, metrics.BenchmarksFamily, snap, out)
}

func recordCoverage(ctx context.Context, cfg *config.Config, in coverageInput, out io.Writer) (*recorder.Result, error) {
	cov, details, err := collect.ReadLLVMCov(in.LLVMCov)
	if err != nil {
		return nil, fmt.Errorf("collect coverage: %w", err)
	}
	tests := collect.ReadTestCounts(in.Tests, logger)
	logger.Info("collected coverage",
		"line_coverage", cov.LineCoverage,
		"tests", tests.Total)

	snap := collect.GitProvenance(ctx, in.RepoDir, nowFunc(), logger).Snapshot()
	snap.Coverage = &cov
	snap.Tests = &tests
	snap.Details = &details

	return record(ctx, cfg, metrics.CoverageFamily, snap, out)
}

func record(ctx context.Context, cfg *config.Config, family string, snap history.Snapshot, out io.Writer) (*recorder.Result, error) {
	executor, err := newHookExecutor(cfg)
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer closeStore(st)

	rec, err := newRecorder(cfg, st)
	if err != nil {
		return nil, err
	}

	res, err := rec.Record(ctx, family, snap)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "%s: recorded %s (%d snapshots)\n", family, snap.CommitSHA, len(res.History.Snapshots))
	fmt.Fprintln(out, report.RetentionLine(res.Retention))

	if executor != nil {
		if err := runHooks(ctx, cfg, executor, res, snap); err != nil {
			if cfg.Hooks.FailOnError {
				return res, err
			}
			logger.Warn("hooks failed", "family", family, "run_id", res.RunID, "error", err)
		}
	}
	return res, nil
}

func runHooks(ctx context.Context, cfg *config.Config, executor *hooks.Executor, res *recorder.Result, snap history.Snapshot) error {
	params := hooks.Params{
		RunID:       res.RunID,
		Family:      res.Family,
		CommitSHA:   snap.CommitSHA,
		Timestamp:   snap.Timestamp,
		HistoryFile: historyLocation(cfg, res.Family),
		Snapshots:   len(res.History.Snapshots),
		Degraded:    hooks.Degraded(res.History),
	}
	return hooks.Run(ctx, executor, cfg.Hooks, params)
}
