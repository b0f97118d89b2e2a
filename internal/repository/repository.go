package repository

import (
	"context"
	"fmt"
	"log/slog"

	"reviewcreator/internal/config"
	"reviewcreator/internal/models"
	"reviewcreator/internal/repository/inmemory"
	"reviewcreator/internal/repository/postgres"
)

type CommitSource interface {
	GetChangeset(ctx context.Context, repository, changesetID string) (models.Commit, bool, error)
}

type ProjectStore interface {
	AllBindings(ctx context.Context) ([]models.ProjectBinding, error)
	IsEnabled(ctx context.Context, projectKey string) (bool, error)
	BranchFilter(ctx context.Context, repository string) (string, error)
}

type IdentityDirectory interface {
	AllUsers(ctx context.Context) ([]models.Identity, error)
	CommitterMappings(ctx context.Context, username, repository string) ([]string, error)
	// GetUser fails with models.ErrUnknownIdentity when name is not known.
	GetUser(ctx context.Context, name string) (models.Identity, error)
	IsUserInGroup(ctx context.Context, username, group string) (bool, error)
}

type ReviewStore interface {
	CreateReview(ctx context.Context, tmpl models.ReviewTemplate, repository string, changesetIDs []string) (models.Review, error)
	AddChangesets(ctx context.Context, reviewID, repository string, changesetIDs []string) error
	AddReviewers(ctx context.Context, reviewID string, usernames []string) error
	Transition(ctx context.Context, reviewID string, action models.ReviewAction) (models.Review, error)
	AddComment(ctx context.Context, reviewID, message string) (models.Comment, error)
	GetReview(ctx context.Context, reviewID string) (models.Review, bool, error)
	SearchByKey(ctx context.Context, key string) ([]models.Review, error)
}

// SettingsStore is a flat key/value store for administrator settings.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

type LifecycleInterface interface {
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
}

// Repository aggregates every collaborator a backend provides.
type Repository interface {
	LifecycleInterface
	CommitSource
	ProjectStore
	IdentityDirectory
	ReviewStore
	SettingsStore
}

// New constructs a repository backend by name.
func New(name string, cfg *config.Config, logger *slog.Logger) (Repository, error) {
	switch name {
	case "postgres":
		return postgres.New(postgres.Options{
			DSN:            cfg.Postgres.DSN(),
			MaxConns:       cfg.Postgres.MaxConns,
			MinConns:       cfg.Postgres.MinConns,
			ConnectTimeout: cfg.Postgres.ConnectTimeout,
			Migrate:        cfg.Postgres.Migrate,
		}, logger), nil
	case "memory":
		return inmemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown repo backend: %s", name)
	}
}

var (
	_ Repository = (*inmemory.Store)(nil)
	_ Repository = (*postgres.Repo)(nil)
)
