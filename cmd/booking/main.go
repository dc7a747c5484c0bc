package main

import (
	"fmt"
	"os"

	"golf-booking/config"
	"golf-booking/pkg/logger"

	"github.com/spf13/cobra"
)

var Version = "dev"

var devLogging bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "booking",
		Short:         "Golf instruction booking API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&devLogging, "dev", false, "human-readable console logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and builds the logger it asks for.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if devLogging || cfg.Log.Development {
		return cfg, logger.NewDevelopment(), nil
	}
	return cfg, logger.New(cfg.Log.Level), nil
}
