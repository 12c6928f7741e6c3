package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/biocoder/pkg/api"
	"github.com/ssargent/biocoder/pkg/config"
	"github.com/ssargent/biocoder/pkg/storage"
)

// autoKey asks serve to generate a key for the lifetime of the process
const autoKey = "auto"

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the biocoder REST API server over the stream store in the data
directory. Requests under /api/v1 need the X-API-Key header. Prometheus
metrics are served at /metrics and the API documentation at /swagger/.

With the API key set to "auto" a key is generated for this run and printed.
Run 'biocoder init' to store a permanent one.

Examples:
  biocoder serve
  biocoder serve --port 9000 --bind 0.0.0.0
  BIOCODER_API_KEY=secret biocoder serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := runtimeFrom(cmd)
		cfg := rt.config

		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			cfg.Bind, _ = cmd.Flags().GetString("bind")
		}
		if key, _ := cmd.Flags().GetString("api-key"); key != "" {
			cfg.Security.APIKey = key
		}

		if container == nil {
			return errors.New("dependency container not initialized")
		}

		coderCfg, err := cfg.CoderConfig()
		if err != nil {
			return err
		}

		apiKey := cfg.Security.APIKey
		if apiKey == "" || apiKey == autoKey {
			apiKey, err = config.GenerateSecureKey(32)
			if err != nil {
				return err
			}
			cmd.Printf("Generated API key for this run: %s\n", apiKey)
		}

		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		streamStore, err := container.GetStoreFactory().OpenStreamStore(cfg.StorePath())
		if err != nil {
			return fmt.Errorf("failed to open stream store: %w", err)
		}
		defer streamStore.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cmd.Printf("Starting biocoder server on %s:%d\n", cfg.Bind, cfg.Port)
		cmd.Printf("Data directory: %s\n", cfg.DataDir)

		starter := container.GetServerFactory().CreateServerStarter()
		err = starter.StartServer(ctx, storage.NewStreamCoder(streamStore, rt.logger), api.ServerConfig{
			Port:            cfg.Port,
			Bind:            cfg.Bind,
			APIKey:          apiKey,
			MaxFrameSymbols: cfg.Security.MaxFrameSymbols,
			Coder:           coderCfg,
			Logger:          rt.logger,
		})
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		rt.logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides the config file)")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to (overrides the config file)")
	serveCmd.Flags().String("api-key", "", "API key for /api/v1 (overrides the config file)")
}
