package service

import (
	"context"
	"errors"
	"testing"

	"reviewcreator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestFindOpenReviewMarker(t *testing.T) {
	binding := models.ProjectBinding{Key: "FOO", Repository: "core", Enabled: true}

	tests := []struct {
		name    string
		message string
		reviews map[string]models.Review
		errs    map[string]error
		wantID  string
		wantOK  bool
	}{
		{
			name:    "first open wins in message order",
			message: "FOO-3 continues FOO-1",
			reviews: map[string]models.Review{
				"FOO-1": {ID: "FOO-1", State: models.ReviewStateReview},
				"FOO-3": {ID: "FOO-3", State: models.ReviewStateDraft},
			},
			wantID: "FOO-3",
			wantOK: true,
		},
		{
			name:    "closed skipped",
			message: "FOO-1 FOO-2",
			reviews: map[string]models.Review{
				"FOO-1": {ID: "FOO-1", State: models.ReviewStateClosed},
				"FOO-2": {ID: "FOO-2", State: models.ReviewStateApproval},
			},
			wantID: "FOO-2",
			wantOK: true,
		},
		{
			name:    "missing and failing lookups fall through",
			message: "FOO-7 FOO-8 FOO-9",
			reviews: map[string]models.Review{
				"FOO-9": {ID: "FOO-9", State: models.ReviewStateReview},
			},
			errs:   map[string]error{"FOO-8": errors.New("timeout")},
			wantID: "FOO-9",
			wantOK: true,
		},
		{
			name:    "all closed",
			message: "FOO-1",
			reviews: map[string]models.Review{
				"FOO-1": {ID: "FOO-1", State: models.ReviewStateClosed},
			},
		},
		{
			name:    "no markers",
			message: "plain message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockReviewStore)
			for _, id := range ExtractReviewIDs(tt.message, binding.Key) {
				r, found := tt.reviews[id]
				store.On("GetReview", mock.Anything, id).Return(r, found, tt.errs[id]).Maybe()
			}
			m := NewMatcher(store, createTestLogger())

			got, ok := m.FindOpenReview(context.Background(),
				models.Commit{Message: tt.message, Branches: []string{"feature/x"}}, binding, "feature/x", models.MatchMarker)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, got.ID)
			if ok {
				assert.NotEqual(t, models.ReviewStateClosed, got.State)
			}
		})
	}
}

func TestFindOpenReviewDerivedKey(t *testing.T) {
	binding := models.ProjectBinding{Key: "FOO", Repository: "core", Enabled: true}
	commit := models.Commit{Message: "FOO-1", Branches: []string{"master", "feature/login"}}

	t.Run("open match", func(t *testing.T) {
		store := new(MockReviewStore)
		store.On("SearchByKey", mock.Anything, "featurelogin-1").Return([]models.Review{
			{ID: "FOO-1", ProjectKey: "FOO", State: models.ReviewStateClosed},
			{ID: "FOO-4", ProjectKey: "FOO", State: models.ReviewStateReview},
		}, nil)

		got, ok := NewMatcher(store, createTestLogger()).FindOpenReview(context.Background(),
			commit, binding, "feature/login", models.MatchDerivedKey)

		assert.True(t, ok)
		assert.Equal(t, "FOO-4", got.ID)
		store.AssertNotCalled(t, "GetReview", mock.Anything, mock.Anything)
	})

	t.Run("other project's review ignored", func(t *testing.T) {
		store := new(MockReviewStore)
		store.On("SearchByKey", mock.Anything, "featurelogin-1").Return([]models.Review{
			{ID: "BAR-2", ProjectKey: "BAR", State: models.ReviewStateReview},
		}, nil)

		_, ok := NewMatcher(store, createTestLogger()).FindOpenReview(context.Background(),
			commit, binding, "feature/login", models.MatchDerivedKey)

		assert.False(t, ok)
	})

	t.Run("search failure means no match", func(t *testing.T) {
		store := new(MockReviewStore)
		store.On("SearchByKey", mock.Anything, "featurelogin-1").Return([]models.Review(nil), errors.New("index offline"))

		_, ok := NewMatcher(store, createTestLogger()).FindOpenReview(context.Background(),
			commit, binding, "feature/login", models.MatchDerivedKey)

		assert.False(t, ok)
	})

	t.Run("no eligible branch", func(t *testing.T) {
		store := new(MockReviewStore)

		_, ok := NewMatcher(store, createTestLogger()).FindOpenReview(context.Background(),
			models.Commit{Branches: []string{"trunk"}}, binding, "", models.MatchDerivedKey)

		assert.False(t, ok)
		store.AssertNotCalled(t, "SearchByKey", mock.Anything, mock.Anything)
	})
}

func TestFindOpenReviewNone(t *testing.T) {
	store := new(MockReviewStore)

	_, ok := NewMatcher(store, createTestLogger()).FindOpenReview(context.Background(),
		models.Commit{Message: "FOO-1"}, models.ProjectBinding{Key: "FOO"}, "feature/x", models.MatchNone)

	assert.False(t, ok)
	store.AssertExpectations(t)
}
