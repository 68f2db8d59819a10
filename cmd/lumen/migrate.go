package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/lumen/internal/infrastructure/database"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the preference database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openConfiguredDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			applied, pending, err := db.MigrationStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading migration status: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
			for _, r := range applied {
				fmt.Fprintf(tw, "%s\t\t%s\n", r.Version, r.AppliedAt.Local().Format(time.DateTime))
			}
			for _, m := range pending {
				fmt.Fprintf(tw, "%s\t%s\tpending\n", m.Version, m.Name)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openConfiguredDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert the most recently applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openConfiguredDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.MigrateDown(cmd.Context()); err != nil {
				return fmt.Errorf("reverting migration: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reverted latest migration")
			return nil
		},
	})

	return cmd
}

// openConfiguredDatabase opens the database without migrating it.
func openConfiguredDatabase() (*database.DB, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
