package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driveindex/driveindex/internal/config"
	"github.com/driveindex/driveindex/internal/logger"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	root := &cobra.Command{
		Use:           "driveindex",
		Short:         "Offline download controller for a drive index",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running without a subcommand serves.
		RunE: serve.RunE,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(serve, newMigrateCmd())
	return root
}

// loadRuntime reads configuration and builds the process logger.
func loadRuntime(recentSize int) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		RecentSize: recentSize,
	})
	return cfg, log, nil
}
