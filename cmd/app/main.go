package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"StockTracker/pkg/config"
)

var configPath string

// rootCmd is the base command for the StockTracker CLI. Without a
// subcommand it serves the dashboard.
var rootCmd = &cobra.Command{
	Use:   "stocktracker",
	Short: "StockTracker price ingestion and BUY/SELL signal dashboard",
	Long: `StockTracker ingests daily closing prices from CSV uploads, derives
BUY/SELL/HOLD signals per ticker and serves them as an HTML dashboard and
a JSON API.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
