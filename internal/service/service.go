package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reviewcreator/internal/actor"
	"reviewcreator/internal/models"
	"reviewcreator/internal/repository"
	"reviewcreator/internal/settings"

	"github.com/google/uuid"
)

type Service struct {
	commits    repository.CommitSource
	settings   *settings.Manager
	bindings   *BindingResolver
	identities *IdentityResolver
	driver     *Driver
	imp        *actor.Impersonator
	logger     *slog.Logger
}

type Options struct {
	ApproveDelay time.Duration
	NowFunc      func() time.Time
}

// NewService wires the decision engine on top of a backend that provides
// every collaborator.
func NewService(r repository.Repository, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	imp := actor.NewImpersonator(r, logger)
	return &Service{
		commits:    r,
		settings:   settings.NewManager(r),
		bindings:   NewBindingResolver(r, logger),
		identities: NewIdentityResolver(r),
		driver: NewDriver(DriverDeps{
			Projects:     r,
			Directory:    r,
			Reviews:      r,
			Impersonator: imp,
			NowFunc:      opts.NowFunc,
			ApproveDelay: opts.ApproveDelay,
		}, logger),
		imp:    imp,
		logger: logger,
	}
}

func (s *Service) Settings() *settings.Manager { return s.settings }

// ProcessCommit handles one commit notification end to end. It never
// returns an error: every failure is logged and reported in the Outcome.
func (s *Service) ProcessCommit(ctx context.Context, ev models.CommitEvent) models.Outcome {
	log := s.logger.With(
		"run_id", uuid.NewString(),
		"repository", ev.Repository,
		"changeset", ev.ChangesetID,
	)
	ctx = withLogger(ctx, log)

	out := s.process(ctx, ev)
	switch out.Kind {
	case models.OutcomeFailed:
		log.Error("unable to auto-create review", "error", out.Err)
	case models.OutcomeSkipped:
		log.Info("commit skipped", "reason", out.Reason)
	default:
		log.Info("commit processed", "outcome", out.Kind, "review_id", out.ReviewID)
	}
	return out
}

func (s *Service) process(ctx context.Context, ev models.CommitEvent) models.Outcome {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return models.Failed(err)
	}
	if cfg.RunAs == "" {
		return models.Skipped(models.SkipPluginDisabled)
	}

	out, err := actor.RunAs(ctx, s.imp, cfg.RunAs, func(ctx context.Context) (models.Outcome, error) {
		return s.processAsAdmin(ctx, ev, cfg), nil
	})
	if err != nil {
		return models.Failed(err)
	}
	return out
}

func (s *Service) processAsAdmin(ctx context.Context, ev models.CommitEvent, cfg settings.Snapshot) models.Outcome {
	commit, found, err := s.commits.GetChangeset(ctx, ev.Repository, ev.ChangesetID)
	if err != nil {
		return models.Failed(fmt.Errorf("load changeset: %w", err))
	}
	if !found {
		return models.Failed(fmt.Errorf("%w: %s:%s", models.ErrChangesetNotFound, ev.Repository, ev.ChangesetID))
	}

	binding, bound, err := s.bindings.Resolve(ctx, ev.Repository)
	if err != nil {
		return models.Failed(err)
	}
	if !bound {
		return models.Failed(fmt.Errorf("%w: %s", models.ErrNotBound, ev.Repository))
	}

	ids, err := s.identities.BuildMap(ctx, ev.Repository)
	if err != nil {
		return models.Failed(err)
	}

	return s.driver.CreateOrAppend(ctx, commit, binding, ids, cfg)
}

// IsConfigError reports whether a failed outcome stems from project or
// engine configuration rather than from a collaborator failure.
func IsConfigError(err error) bool {
	return errors.Is(err, models.ErrNotBound) ||
		errors.Is(err, models.ErrBindingConflict) ||
		errors.Is(err, models.ErrNoModerator) ||
		errors.Is(err, models.ErrInvalidCreateMode)
}
