package cli

import (
	"fmt"

	"reviewcreator/internal/migration"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.Backend != "postgres" {
				a.exitCode = ExitUsageError
				return fmt.Errorf("migrate needs the postgres backend, got %q", cfg.Store.Backend)
			}

			pool, err := pgxpool.New(cmd.Context(), cfg.Postgres.DSN())
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			return migration.Run(cmd.Context(), pool, logger)
		},
	}
}
