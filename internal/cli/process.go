package cli

import (
	"context"
	"encoding/json"

	"reviewcreator/internal/api"
	"reviewcreator/internal/models"
	"reviewcreator/internal/service"

	"github.com/spf13/cobra"
)

func (a *app) processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <repository> <changeset>",
		Short: "Process one commit now and print the outcome",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}

			repo, err := open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer repo.OnStop(context.Background())

			svc := service.NewService(repo, service.Options{ApproveDelay: cfg.Engine.ApproveDelay}, logger)
			out := svc.ProcessCommit(cmd.Context(), models.CommitEvent{Repository: args[0], ChangesetID: args[1]})

			resp := api.OutcomeResponse{Outcome: out.Kind, ReviewID: out.ReviewID, Reason: out.Reason}
			if out.Err != nil {
				resp.Error = out.Err.Error()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}

			if out.Kind == models.OutcomeFailed {
				a.exitCode = ExitFailed
			}
			return nil
		},
	}
}
