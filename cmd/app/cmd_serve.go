package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"StockTracker/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Connect to the configured backend, apply its schema when
backend.auto_migrate is set, and serve the dashboard until interrupted.

Examples:
  stocktracker serve
  stocktracker serve --config /etc/stocktracker/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, cleanup, err := di.InitializeApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	return app.Run(cmd.Context())
}
