package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/caevv/trendkeeper/internal/config"
	"github.com/caevv/trendkeeper/internal/report"
)

var pruneCmd = &cobra.Command{
	Use:   "prune [family...]",
	Short: "Apply the retention policy to stored histories",
	Long: `Prune applies the configured retention policy to the stored histories and
rebuilds their summaries without recording a new snapshot. Use it after
changing the retention thresholds.

Example:
  trendkeeper prune --dry-run
  trendkeeper prune benchmarks`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return pruneFamilies(cmd.Context(), cfg, args, dryRun, cmd.OutOrStdout())
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild [family...]",
	Short: "Recompute summaries from stored snapshots",
	Long: `Rebuild recomputes each summary from the stored snapshots. Snapshots are
not pruned; the summary is a cache of them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return rebuildFamilies(cmd.Context(), cfg, args, cmd.OutOrStdout())
	},
}

func init() {
	pruneCmd.Flags().Bool("dry-run", false, "Report what would be removed without saving")
}

func pruneFamilies(ctx context.Context, cfg *config.Config, args []string, dryRun bool, out io.Writer) error {
	families, err := resolveFamilies(cfg, args)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	rec, err := newRecorder(cfg, st)
	if err != nil {
		return err
	}

	for _, fam := range families {
		res, err := rec.Prune(ctx, fam.Name, dryRun)
		if err != nil {
			return err
		}
		prefix := fam.Name
		if dryRun {
			prefix += " (dry run)"
		}
		fmt.Fprintf(out, "%s: %s\n", prefix, report.RetentionLine(res.Retention))
	}
	return nil
}

func rebuildFamilies(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	families, err := resolveFamilies(cfg, args)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	rec, err := newRecorder(cfg, st)
	if err != nil {
		return err
	}

	for _, fam := range families {
		res, err := rec.Rebuild(ctx, fam.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: rebuilt %d metric summaries from %d snapshots\n",
			fam.Name, len(res.History.Summary), len(res.History.Snapshots))
	}
	return nil
}
