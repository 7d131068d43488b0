package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caevv/trendkeeper/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Init writes the default configuration to the path given by --config.

Example:
  trendkeeper init --config ./trendkeeper.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := settings.GetString("config")
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := config.InitConfig(configPath, force)
		if err != nil {
			return err
		}

		logger.Info("configuration written", "path", configPath, "families", cfg.FamilyNames())
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
}
