package main

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/iliyamo/techtrack/internal/config"
	"github.com/iliyamo/techtrack/internal/database"
	"github.com/iliyamo/techtrack/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or inspect database migrations",
}

func init() {
	migrateCmd.AddCommand(
		migrateRun("up", "Apply all pending migrations", database.Migrate),
		migrateRun("down", "Roll back the latest migration", database.MigrateDown),
		migrateRun("status", "Print migration status", database.MigrationStatus),
	)
}

func migrateRun(use, short string, fn func(ctx context.Context, db *sql.DB, driver string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			database.SetLogger(log)

			db, err := database.Open(dbOptions(cfg.DB))
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(cmd.Context(), db, cfg.DB.Driver)
		},
	}
}
