package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/caevv/trendkeeper/internal/config"
	"github.com/caevv/trendkeeper/internal/export"
)

// Export formats.
const (
	formatParquet    = "parquet"
	formatPrometheus = "prometheus"
)

var exportCmd = &cobra.Command{
	Use:   "export [family...]",
	Short: "Export histories as Parquet or Prometheus textfiles",
	Long: `Export writes each family's history to a file in the output directory:

  parquet     <family>.parquet, one row per snapshot and metric
  prometheus  <family>.prom, latest values and trends for the
              node_exporter textfile collector

Example:
  trendkeeper export --format prometheus --out /var/lib/node_exporter/textfile`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			outDir = cfg.OutputDir
		}
		return exportFamilies(cfg, args, format, outDir, cmd.OutOrStdout())
	},
}

func init() {
	exportCmd.Flags().StringP("format", "f", formatParquet, "Export format (parquet or prometheus)")
	exportCmd.Flags().StringP("out", "o", "", "Output directory (defaults to output_dir)")
}

func exportFamilies(cfg *config.Config, args []string, format, outDir string, out io.Writer) error {
	if format != formatParquet && format != formatPrometheus {
		return fmt.Errorf("unsupported export format: %s (supported: %s, %s)", format, formatParquet, formatPrometheus)
	}

	families, err := resolveFamilies(cfg, args)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	for _, fam := range families {
		h := st.Load(fam.Name)

		switch format {
		case formatParquet:
			path := filepath.Join(outDir, fam.Name+".parquet")
			rows, err := export.WriteParquet(path, fam, h)
			if err != nil {
				return fmt.Errorf("export %s: %w", fam.Name, err)
			}
			fmt.Fprintf(out, "%s: wrote %d rows to %s\n", fam.Name, rows, path)
		case formatPrometheus:
			path := filepath.Join(outDir, fam.Name+".prom")
			if err := export.WriteTextfile(path, fam.Name, h); err != nil {
				return fmt.Errorf("export %s: %w", fam.Name, err)
			}
			fmt.Fprintf(out, "%s: wrote %s\n", fam.Name, path)
		}
	}
	return nil
}
