package main

import (
	"context"
	"fmt"
	"time"

	"golf-booking/config"
	"golf-booking/internal/catalog"

	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the default program catalog into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadConfig()
			if err != nil {
				return err
			}
			defer l.Sync()

			if cfg.Store != config.StorePostgres {
				return fmt.Errorf("seed needs the postgres store, got %q", cfg.Store)
			}

			store, err := openStore(cfg, l)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			res, err := catalog.NewService(store, l).Seed(ctx, catalog.DefaultPrograms(year))
			if err != nil {
				return err
			}
			if res.Skipped > 0 {
				l.Infow("some programs already existed and were left unchanged", "skipped", res.Skipped)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "season the program sessions are dated in")

	return cmd
}
