package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Load users, project bindings, changesets and settings from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}
			cfg.Store.SeedFile = ""

			repo, err := open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer repo.OnStop(context.Background())

			if err := applySeed(cmd.Context(), repo, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %s from %s\n", cfg.Store.Backend, args[0])
			return nil
		},
	}
}
