package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/caevv/trendkeeper/internal/config"
	"github.com/caevv/trendkeeper/internal/report"
)

var showCmd = &cobra.Command{
	Use:   "show [family...]",
	Short: "Print the stored summaries",
	Long: `Show prints the summary of each family's stored history: latest value,
trend direction and change, and best/worst/average for percentages.

Example:
  trendkeeper show coverage --color`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		colored, _ := cmd.Flags().GetBool("color")
		return showFamilies(cfg, args, colored, cmd.OutOrStdout())
	},
}

func init() {
	showCmd.Flags().Bool("color", false, "Color trend directions")
}

func showFamilies(cfg *config.Config, args []string, colored bool, out io.Writer) error {
	families, err := resolveFamilies(cfg, args)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	for i, fam := range families {
		if i > 0 {
			io.WriteString(out, "\n")
		}
		h := st.Load(fam.Name)
		if err := report.Render(out, fam, h, report.Options{Color: colored, Now: nowFunc()}); err != nil {
			return err
		}
	}
	return nil
}
