package service

import (
	"context"
	"fmt"

	"reviewcreator/internal/models"
	"reviewcreator/internal/repository"
)

type IdentityResolver struct {
	dir repository.IdentityDirectory
}

func NewIdentityResolver(dir repository.IdentityDirectory) *IdentityResolver {
	return &IdentityResolver{dir: dir}
}

// BuildMap walks every known user and collects their committer names for
// repo. It is rebuilt on every commit so mapping edits apply immediately.
func (r *IdentityResolver) BuildMap(ctx context.Context, repo string) (models.IdentityMap, error) {
	users, err := r.dir.AllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	m := make(models.IdentityMap)
	for _, u := range users {
		committers, err := r.dir.CommitterMappings(ctx, u.Username, repo)
		if err != nil {
			return nil, fmt.Errorf("committer mappings for %s: %w", u.Username, err)
		}
		for _, c := range committers {
			m[c] = u
		}
	}
	return m, nil
}
