package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reviewcreator/internal/models"
	"reviewcreator/internal/repository"
)

type BindingResolver struct {
	projects repository.ProjectStore
	logger   *slog.Logger
}

func NewBindingResolver(projects repository.ProjectStore, logger *slog.Logger) *BindingResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &BindingResolver{projects: projects, logger: logger}
}

// Resolve returns the one enabled binding for repo. It reports false when no
// enabled project claims repo and fails with ErrBindingConflict when several do.
func (r *BindingResolver) Resolve(ctx context.Context, repo string) (models.ProjectBinding, bool, error) {
	if repo == "" {
		return models.ProjectBinding{}, false, fmt.Errorf("%w: empty repository", models.ErrNotBound)
	}

	all, err := r.projects.AllBindings(ctx)
	if err != nil {
		return models.ProjectBinding{}, false, fmt.Errorf("load bindings: %w", err)
	}

	matches := make([]models.ProjectBinding, 0, 1)
	for _, b := range all {
		if b.Repository != repo {
			continue
		}
		enabled, err := r.projects.IsEnabled(ctx, b.Key)
		if err != nil {
			return models.ProjectBinding{}, false, fmt.Errorf("check project %s enabled: %w", b.Key, err)
		}
		if enabled {
			matches = append(matches, b)
		}
	}

	switch len(matches) {
	case 0:
		return models.ProjectBinding{}, false, nil
	case 1:
		return matches[0], true, nil
	}

	keys := make([]string, 0, len(matches))
	for _, b := range matches {
		keys = append(keys, b.Key)
	}
	return models.ProjectBinding{}, false, fmt.Errorf("%w: repository %s claimed by %s",
		models.ErrBindingConflict, repo, strings.Join(keys, ", "))
}
