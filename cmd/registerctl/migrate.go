package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bhmc/slot-reservation/internal/config"
	"github.com/bhmc/slot-reservation/internal/database"
)

func migrateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema to the MySQL database",
		Long: `Apply the embedded schema to the MySQL database.

Every statement uses CREATE TABLE IF NOT EXISTS, so running it twice is safe.

Examples:
  registerctl migrate
  registerctl migrate --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				for _, stmt := range database.Statements() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", stmt)
				}
				return nil
			}
			cfg := config.Load()
			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBLockWait)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			n, err := database.Migrate(cmd.Context(), db)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d statements\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statements without running them")
	return cmd
}
