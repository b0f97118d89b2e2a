package inmemory

import (
	"context"
	"fmt"
	"slices"

	"reviewcreator/internal/models"

	"github.com/google/uuid"
)

func (s *Store) CreateReview(ctx context.Context, tmpl models.ReviewTemplate, repository string, changesetIDs []string) (models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bindings[tmpl.ProjectKey()]; !ok {
		return models.Review{}, fmt.Errorf("create review: unknown project %s", tmpl.ProjectKey())
	}
	for _, cs := range changesetIDs {
		if _, ok := s.changesets[changesetKey{repository, cs}]; !ok {
			return models.Review{}, fmt.Errorf("%w: %s:%s", models.ErrChangesetNotFound, repository, cs)
		}
	}

	s.counters[tmpl.ProjectKey()]++
	r := models.Review{
		ID:          fmt.Sprintf("%s-%d", tmpl.ProjectKey(), s.counters[tmpl.ProjectKey()]),
		ProjectKey:  tmpl.ProjectKey(),
		Title:       tmpl.Title(),
		Description: tmpl.Description(),
		State:       models.ReviewStateDraft,
		Author:      tmpl.Author().Username,
		Moderator:   tmpl.Moderator().Username,
		Creator:     tmpl.Creator().Username,
		AllowJoin:   tmpl.AllowJoin(),
		DueDate:     tmpl.DueDate(),
		SearchKey:   tmpl.SearchKey(),
		Reviewers:   []string{},
		CreatedAt:   s.nowFunc(),
	}
	if by := actingAs(ctx); by != "" {
		r.Creator = by
	}
	s.reviews[r.ID] = r
	for _, cs := range changesetIDs {
		s.reviewChangesets[r.ID] = append(s.reviewChangesets[r.ID], changesetKey{repository, cs})
	}
	return cloneReview(r), nil
}

func (s *Store) AddChangesets(_ context.Context, reviewID, repository string, changesetIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[reviewID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrReviewNotFound, reviewID)
	}
	if !r.State.IsOpen() {
		return fmt.Errorf("add changesets: review %s is %s", reviewID, r.State)
	}
	for _, cs := range changesetIDs {
		k := changesetKey{repository, cs}
		if !slices.Contains(s.reviewChangesets[reviewID], k) {
			s.reviewChangesets[reviewID] = append(s.reviewChangesets[reviewID], k)
		}
	}
	return nil
}

func (s *Store) AddReviewers(_ context.Context, reviewID string, usernames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[reviewID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrReviewNotFound, reviewID)
	}
	for _, u := range usernames {
		if _, known := s.users[u]; !known {
			return fmt.Errorf("add reviewer: %w: %s", models.ErrUnknownIdentity, u)
		}
	}
	for _, u := range usernames {
		if !slices.Contains(r.Reviewers, u) {
			r.Reviewers = append(r.Reviewers, u)
		}
	}
	s.reviews[reviewID] = r
	return nil
}

func (s *Store) Transition(_ context.Context, reviewID string, action models.ReviewAction) (models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[reviewID]
	if !ok {
		return models.Review{}, fmt.Errorf("%w: %s", models.ErrReviewNotFound, reviewID)
	}
	next, err := nextState(r.State, action)
	if err != nil {
		return models.Review{}, fmt.Errorf("transition %s: %w", reviewID, err)
	}
	r.State = next
	s.reviews[reviewID] = r
	return cloneReview(r), nil
}

func (s *Store) AddComment(ctx context.Context, reviewID, message string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[reviewID]; !ok {
		return models.Comment{}, fmt.Errorf("%w: %s", models.ErrReviewNotFound, reviewID)
	}
	c := models.Comment{
		ID:        uuid.NewString(),
		ReviewID:  reviewID,
		Author:    actingAs(ctx),
		Message:   message,
		CreatedAt: s.nowFunc(),
	}
	s.comments[reviewID] = append(s.comments[reviewID], c)
	return c, nil
}

func (s *Store) GetReview(_ context.Context, reviewID string) (models.Review, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[reviewID]
	if !ok {
		return models.Review{}, false, nil
	}
	return cloneReview(r), true, nil
}

func (s *Store) SearchByKey(_ context.Context, key string) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Review, 0)
	for _, r := range s.reviews {
		if r.SearchKey == key {
			out = append(out, cloneReview(r))
		}
	}
	slices.SortFunc(out, func(a, b models.Review) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// Comments and Changesets expose review contents for inspection.
func (s *Store) Comments(reviewID string) []models.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.comments[reviewID])
}

func (s *Store) Changesets(reviewID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.reviewChangesets[reviewID]))
	for _, k := range s.reviewChangesets[reviewID] {
		out = append(out, k.id)
	}
	return out
}

func (s *Store) Reviews() []models.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		out = append(out, cloneReview(r))
	}
	return out
}

func nextState(from models.ReviewState, action models.ReviewAction) (models.ReviewState, error) {
	switch action {
	case models.ActionApprove:
		if from == models.ReviewStateDraft || from == models.ReviewStateApproval {
			return models.ReviewStateReview, nil
		}
	case models.ActionClose:
		if from == models.ReviewStateReview {
			return models.ReviewStateClosed, nil
		}
	}
	return from, fmt.Errorf("action %s not allowed in state %s", action, from)
}

func cloneReview(r models.Review) models.Review {
	r.Reviewers = slices.Clone(r.Reviewers)
	if r.DueDate != nil {
		d := *r.DueDate
		r.DueDate = &d
	}
	return r
}
