package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"StockTracker/internal/di"
	applogger "StockTracker/pkg/logger"
)

var migrateTimeout time.Duration

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the storage schema and exit",
	Long: `Apply the schema of the configured backend. Every statement is
idempotent, so running it repeatedly is safe. The memory backend has
nothing to migrate.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().DurationVar(&migrateTimeout, "timeout", 2*time.Minute, "Timeout for the whole migration")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
	defer cancel()

	applied, err := di.Migrate(ctx, cfg)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cfg.Backend.Type, err)
	}
	if len(applied) == 0 {
		l.Info("nothing to migrate", applogger.String("backend", cfg.Backend.Type))
		return nil
	}
	l.Info("schema applied",
		applogger.String("backend", cfg.Backend.Type),
		applogger.Strings("applied", applied),
	)
	return nil
}
