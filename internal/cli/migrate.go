package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmytrogajewski/ett-summary/internal/config"
	"github.com/dmytrogajewski/ett-summary/internal/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema of the summary store",
		Long:  "migrate applies or rolls back the embedded schema migrations. serve applies pending migrations on startup, so down is the usual reason to run this by hand.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd, *configPath, database.RunMigrations, "migrations applied")
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last applied migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd, *configPath, database.RollbackMigration, "last migration rolled back")
			},
		},
	)

	return cmd
}

func runMigrate(cmd *cobra.Command, configPath string, step func(config.DatabaseConfig) error, done string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Store.Backend != config.StorePostgres {
		return fmt.Errorf("migrations apply to the postgres store only, configured backend is %s", cfg.Store.Backend)
	}

	if err := step(cfg.Database); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), done)
	return err
}
