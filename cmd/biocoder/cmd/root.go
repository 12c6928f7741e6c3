package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/biocoder/pkg/config"
	"github.com/ssargent/biocoder/pkg/di"
	"github.com/ssargent/biocoder/pkg/logging"
)

var container *di.Container

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	container = c
}

type runtimeKey struct{}

// runtime is what every command gets from the root command
type runtime struct {
	config     *config.Config
	configPath string
	logger     *slog.Logger
}

func runtimeFrom(cmd *cobra.Command) *runtime {
	rt, _ := cmd.Context().Value(runtimeKey{}).(*runtime)
	return rt
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "biocoder",
	Short: "biocoder - adaptive entropy coding for visual symbol streams",
	Long: `biocoder codes streams of typed visual symbols (luminance, chrominance,
motion vectors, transform coefficients, residuals, features) with an adaptive
range coder whose model learns from every frame it has seen.

Frames are read and written as JSON lines, one frame per line:
  [{"kind":"luminance","value":12.5},{"kind":"motion_vector","x":1,"y":-2}]`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		cfg := config.DefaultConfig()
		if config.ConfigExists(configPath) {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		cfg.ApplyEnv()

		if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
			cfg.DataDir = dataDir
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		if format, _ := cmd.Flags().GetString("log-format"); format != "" {
			cfg.Logging.Format = format
		}

		logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("invalid logging config: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(context.WithValue(ctx, runtimeKey{}, &runtime{
			config:     cfg,
			configPath: configPath,
			logger:     logger,
		}))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: $BIOCODER_CONFIG or ~/.config/biocoder/config.yaml)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory (overrides the config file)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
}
