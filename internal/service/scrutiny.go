package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"reviewcreator/internal/models"
)

type GroupMembership func(ctx context.Context, username, group string) (bool, error)

type ScrutinyEvaluator struct {
	logger *slog.Logger
}

func NewScrutinyEvaluator(logger *slog.Logger) *ScrutinyEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScrutinyEvaluator{logger: logger}
}

// IsUnderScrutiny decides whether commits by committer must be reviewed.
// Unknown committers are always reviewed. ALWAYS reviews everyone outside the
// exempt users and groups; NEVER reviews only them.
func (e *ScrutinyEvaluator) IsUnderScrutiny(ctx context.Context, committer string, ids models.IdentityMap,
	policy models.ScrutinyPolicy, membership GroupMembership) (bool, error) {

	id, ok := ids.Lookup(committer)
	if !ok {
		loggerFrom(ctx, e.logger).Warn("committer not mapped to a user, treating as under scrutiny", "committer", committer)
		return true, nil
	}

	listed, err := inPolicy(ctx, id.Username, policy, membership)
	if err != nil {
		return false, err
	}

	switch policy.Mode {
	case models.CreateModeAlways:
		return !listed, nil
	case models.CreateModeNever:
		return listed, nil
	default:
		return false, fmt.Errorf("%w: %q", models.ErrInvalidCreateMode, policy.Mode)
	}
}

func inPolicy(ctx context.Context, username string, policy models.ScrutinyPolicy, membership GroupMembership) (bool, error) {
	if slices.Contains(policy.ExemptUsers, username) {
		return true, nil
	}
	for _, g := range policy.ExemptGroups {
		in, err := membership(ctx, username, g)
		if err != nil {
			return false, fmt.Errorf("group membership %s in %s: %w", username, g, err)
		}
		if in {
			return true, nil
		}
	}
	return false, nil
}
