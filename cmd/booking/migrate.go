package main

import (
	"fmt"

	"golf-booking/internal/db"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadConfig()
			if err != nil {
				return err
			}
			defer l.Sync()

			if err := db.Migrate(cfg.DB.DSN()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			l.Infow("database schema is up to date", "host", cfg.DB.Host, "database", cfg.DB.DBName)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadConfig()
			if err != nil {
				return err
			}
			defer l.Sync()

			if err := db.MigrateDown(cfg.DB.DSN()); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			l.Infow("rolled back one migration", "host", cfg.DB.Host, "database", cfg.DB.DBName)
			return nil
		},
	})

	return cmd
}
