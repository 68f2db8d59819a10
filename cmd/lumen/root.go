package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/lumen/migrations"

	"github.com/nerrad567/lumen/internal/infrastructure/config"
	"github.com/nerrad567/lumen/internal/infrastructure/database"
)

// configPath is the --config flag; empty defers to config.ResolvePath.
var configPath string

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lumen",
		Short: "Adaptive screen brightness that learns your preferences",
		Long: `lumen sets the backlight from screen content and ambient light.

Every time you change the brightness yourself, lumen remembers the value
for the current conditions and uses it from then on. Running lumen without
a subcommand starts the daemon.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"configuration file (default: $LUMEN_CONFIG, then $XDG_CONFIG_HOME/lumen/config.yaml)")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newPreferencesCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the brightness daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lumen %s\ncommit: %s\nbuilt:  %s\n", version, commit, date)
		},
	}
}

// loadConfig resolves and loads the configuration. When no file was asked
// for and none exists, built-in defaults are used and the returned path is
// empty.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path, explicit := config.ResolvePath(flagPath)

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}

	cfg, err = config.LoadDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("loading default config: %w", err)
	}
	return cfg, "", nil
}

// openDatabase opens the preference database and brings its schema up to date.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
