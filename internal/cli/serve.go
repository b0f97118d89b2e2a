package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"reviewcreator/internal/api"
	"reviewcreator/internal/events"
	"reviewcreator/internal/service"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept commit notifications over HTTP and process them in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}
			logger.Info("application starting", "addr", cfg.ServerAddr(), "backend", cfg.Store.Backend,
				"workers", cfg.Engine.Workers)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			repo, err := open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer repo.OnStop(context.Background())

			svc := service.NewService(repo, service.Options{ApproveDelay: cfg.Engine.ApproveDelay}, logger)
			dispatcher := events.NewDispatcher(svc.ProcessCommit, cfg.Engine.Workers, cfg.Engine.QueueSize, logger)
			h := api.NewHandler(svc, dispatcher, logger)

			srv := &http.Server{
				Addr:         cfg.ServerAddr(),
				Handler:      h.Router(),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			workCtx, cancelWork := context.WithCancel(context.Background())
			defer cancelWork()

			g := new(errgroup.Group)
			g.Go(func() error {
				return dispatcher.Run(workCtx)
			})
			g.Go(func() error {
				logger.Info("server starting", "address", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					stop()
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			})

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown failed", "error", err)
			}

			dispatcher.Close()
			go func() {
				<-shutdownCtx.Done()
				cancelWork()
			}()

			return g.Wait()
		},
	}
}
