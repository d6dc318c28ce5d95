package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratix-hq/stratix-sdk/modules/okr/infrastructure/persistence"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the OKR database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := persistence.RunMigrations(ctx, pool); err != nil {
				return withCode(exitMigration, fmt.Errorf("migrate up: %w", err))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert the most recent schema migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := persistence.RollbackMigrations(ctx, pool); err != nil {
				return withCode(exitMigration, fmt.Errorf("migrate down: %w", err))
			}
			return nil
		},
	})

	return cmd
}
