// Package cli wires configuration, storage and the engine into the
// review-creator command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"reviewcreator/internal/config"
	"reviewcreator/internal/repository"
	"reviewcreator/internal/seed"

	"github.com/spf13/cobra"
)

const (
	ExitSuccess      = 0
	ExitFailed       = 1
	ExitUsageError   = 2
	ExitRuntimeError = 3
)

type app struct {
	envFile  string
	exitCode int
	// started is set once arguments are validated and a command runs.
	started bool
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{exitCode: ExitSuccess}
	root := &cobra.Command{
		Use:           "review-creator",
		Short:         "Automatic code review creation for commits",
		Long:          "review-creator turns commit notifications into code reviews: it creates a review per eligible commit or appends the commit to an open one.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			a.started = true
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "dotenv file read before the environment")

	root.AddCommand(a.serveCmd())
	root.AddCommand(a.processCmd())
	root.AddCommand(a.migrateCmd())
	root.AddCommand(a.seedCmd())
	return root, a
}

// Run executes the root command with args and returns an exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root, a := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		switch {
		case a.exitCode != ExitSuccess:
			return a.exitCode
		case !a.started:
			return ExitUsageError
		}
		return ExitRuntimeError
	}
	return a.exitCode
}

func (a *app) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		a.exitCode = ExitUsageError
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	return cfg, logger, nil
}

// open starts the configured backend and applies the seed file, if any. The
// caller must call OnStop on the returned repository.
func open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Repository, error) {
	repo, err := repository.New(cfg.Store.Backend, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := repo.OnStart(ctx); err != nil {
		return nil, fmt.Errorf("start %s backend: %w", cfg.Store.Backend, err)
	}

	if cfg.Store.SeedFile != "" {
		if err := applySeed(ctx, repo, cfg.Store.SeedFile); err != nil {
			_ = repo.OnStop(ctx)
			return nil, err
		}
		logger.Info("seed applied", "file", cfg.Store.SeedFile)
	}
	return repo, nil
}

func applySeed(ctx context.Context, repo repository.Repository, path string) error {
	target, ok := repo.(seed.Target)
	if !ok {
		return fmt.Errorf("backend %T cannot be seeded", repo)
	}
	f, err := seed.Load(path)
	if err != nil {
		return err
	}
	return seed.Apply(ctx, target, f)
}
