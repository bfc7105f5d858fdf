package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"geotasks/api/internal/config"
	"geotasks/api/internal/migrations"
)

func newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(cmd *cobra.Command, r *migrations.Runner) error {
			if err := r.Up(); err != nil {
				return err
			}
			cmd.Println("Migrations applied")
			return nil
		}),
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(cmd *cobra.Command, r *migrations.Runner) error {
			if err := r.Down(); err != nil {
				return err
			}
			cmd.Println("Rolled back one migration")
			return nil
		}),
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(cmd *cobra.Command, r *migrations.Runner) error {
			version, dirty, ok, err := r.Version()
			if err != nil {
				return err
			}
			if !ok {
				cmd.Println("No migrations applied")
				return nil
			}
			if dirty {
				cmd.Printf("Version %d (dirty)\n", version)
				return nil
			}
			cmd.Printf("Version %d\n", version)
			return nil
		}),
	})

	return migrateCmd
}

// withRunner loads config and opens a migration runner around fn
func withRunner(fn func(cmd *cobra.Command, r *migrations.Runner) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		r, err := migrations.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer r.Close()

		return fn(cmd, r)
	}
}
