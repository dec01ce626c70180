package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/driveindex/driveindex/internal/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(
		migrateStep("up", "Apply all pending migrations", (*database.DB).Migrate),
		migrateStep("down", "Roll back the most recent migration", (*database.DB).MigrateDown),
		migrateStep("status", "Show applied and pending migrations", printMigrationStatus),
	)
	return cmd
}

func printMigrationStatus(db *database.DB, ctx context.Context) error {
	states, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	for _, st := range states {
		applied := "pending"
		if st.Applied {
			applied = "applied " + humanize.Time(st.AppliedAt)
		}
		fmt.Printf("%05d  %-32s %s\n", st.Version, st.Name, applied)
	}
	return nil
}

func migrateStep(use, short string, run func(*database.DB, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime(0)
			if err != nil {
				return err
			}
			defer log.Close()

			db, err := database.New(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := run(db, cmd.Context()); err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}
			log.Info().Str("path", db.Path()).Str("step", use).Msg("migration finished")
			return nil
		},
	}
}
