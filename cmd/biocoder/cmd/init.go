package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/biocoder/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with a generated API key",
	Long: `Create the biocoder configuration file and data directory.

The configuration holds the coder parameters every encoder and decoder of a
stream must share, the server settings and a generated API key.

Examples:
  biocoder init
  biocoder init --config ./biocoder.yaml --data-dir ./data --print-key`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := runtimeFrom(cmd)
		force, _ := cmd.Flags().GetBool("force")
		printKey, _ := cmd.Flags().GetBool("print-key")

		if config.ConfigExists(rt.configPath) && !force {
			cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", rt.configPath)
			return nil
		}

		cfg, err := config.BootstrapConfig(rt.configPath, rt.config.DataDir)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		cmd.Printf("Configuration created at %s\n", rt.configPath)
		cmd.Printf("Data directory: %s\n", cfg.DataDir)
		if printKey {
			cmd.Printf("API key: %s\n", cfg.Security.APIKey)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
	initCmd.Flags().Bool("print-key", false, "Print the generated API key")
}
