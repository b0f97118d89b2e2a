package service

import (
	"context"
	"log/slog"

	"reviewcreator/internal/models"
	"reviewcreator/internal/repository"
)

type Matcher struct {
	reviews repository.ReviewStore
	logger  *slog.Logger
}

func NewMatcher(reviews repository.ReviewStore, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{reviews: reviews, logger: logger}
}

// FindOpenReview looks for an open review of binding's project the commit
// should be appended to. branch is the eligible branch the caller already
// picked; the derived-key strategy searches by it.
// Lookup failures never propagate; they only mean "no match".
func (m *Matcher) FindOpenReview(ctx context.Context, commit models.Commit, binding models.ProjectBinding,
	branch string, strategy models.MatchStrategy) (models.Review, bool) {

	switch strategy {
	case models.MatchMarker:
		return m.byMarker(ctx, commit, binding)
	case models.MatchDerivedKey:
		return m.byDerivedKey(ctx, binding, branch)
	default:
		return models.Review{}, false
	}
}

func (m *Matcher) byMarker(ctx context.Context, commit models.Commit, binding models.ProjectBinding) (models.Review, bool) {
	log := loggerFrom(ctx, m.logger)

	for _, id := range ExtractReviewIDs(commit.Message, binding.Key) {
		review, found, err := m.reviews.GetReview(ctx, id)
		if err != nil {
			log.Warn("failed to look up review mentioned in commit", "review_id", id, "error", err)
			continue
		}
		if !found {
			log.Debug("review mentioned in commit does not exist", "review_id", id)
			continue
		}
		if review.State.IsOpen() {
			return review, true
		}
		log.Debug("review mentioned in commit is not open", "review_id", id, "state", review.State)
	}
	return models.Review{}, false
}

func (m *Matcher) byDerivedKey(ctx context.Context, binding models.ProjectBinding, branch string) (models.Review, bool) {
	log := loggerFrom(ctx, m.logger)

	if branch == "" {
		return models.Review{}, false
	}
	key := DerivedReviewKey(branch)

	found, err := m.reviews.SearchByKey(ctx, key)
	if err != nil {
		log.Warn("review search failed, creating a new review", "key", key, "error", err)
		return models.Review{}, false
	}
	for _, review := range found {
		// Search keys are shared across projects.
		if review.ProjectKey != binding.Key {
			continue
		}
		if review.State.IsOpen() {
			return review, true
		}
	}
	return models.Review{}, false
}
