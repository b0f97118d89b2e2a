package service

import (
	"context"
	"errors"
	"testing"

	"reviewcreator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		repo      string
		bindings  []models.ProjectBinding
		storeErr  error
		wantKey   string
		wantBound bool
		wantErr   error
	}{
		{
			name: "single enabled binding",
			repo: "core",
			bindings: []models.ProjectBinding{
				{Key: "CORE", Repository: "core", Enabled: true},
				{Key: "WEB", Repository: "web", Enabled: true},
			},
			wantKey:   "CORE",
			wantBound: true,
		},
		{
			name: "disabled bindings ignored",
			repo: "core",
			bindings: []models.ProjectBinding{
				{Key: "OLD", Repository: "core", Enabled: false},
				{Key: "CORE", Repository: "core", Enabled: true},
			},
			wantKey:   "CORE",
			wantBound: true,
		},
		{
			name:     "not bound",
			repo:     "core",
			bindings: []models.ProjectBinding{{Key: "OLD", Repository: "core"}},
		},
		{
			name: "conflict",
			repo: "core",
			bindings: []models.ProjectBinding{
				{Key: "A", Repository: "core", Enabled: true},
				{Key: "B", Repository: "core", Enabled: true},
			},
			wantErr: models.ErrBindingConflict,
		},
		{
			name:     "store failure",
			repo:     "core",
			bindings: []models.ProjectBinding{},
			storeErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockProjectStore)
			store.On("AllBindings", mock.Anything).Return(tt.bindings, tt.storeErr)
			for _, b := range tt.bindings {
				if b.Repository == tt.repo {
					store.On("IsEnabled", mock.Anything, b.Key).Return(b.Enabled, nil)
				}
			}
			r := NewBindingResolver(store, createTestLogger())

			b, bound, err := r.Resolve(context.Background(), tt.repo)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.storeErr != nil:
				assert.ErrorIs(t, err, tt.storeErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantBound, bound)
				assert.Equal(t, tt.wantKey, b.Key)
			}
			store.AssertExpectations(t)
		})
	}
}

func TestResolveConflictNamesProjects(t *testing.T) {
	store := new(MockProjectStore)
	store.On("AllBindings", mock.Anything).Return([]models.ProjectBinding{
		{Key: "A", Repository: "core", Enabled: true},
		{Key: "B", Repository: "core", Enabled: true},
	}, nil)
	store.On("IsEnabled", mock.Anything, mock.Anything).Return(true, nil)

	_, _, err := NewBindingResolver(store, createTestLogger()).Resolve(context.Background(), "core")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "A, B")
}

func TestResolveEmptyRepository(t *testing.T) {
	store := new(MockProjectStore)

	_, bound, err := NewBindingResolver(store, createTestLogger()).Resolve(context.Background(), "")

	assert.False(t, bound)
	assert.ErrorIs(t, err, models.ErrNotBound)
	store.AssertNotCalled(t, "AllBindings", mock.Anything)
}

func TestResolveUsesStoreEnabledFlag(t *testing.T) {
	t.Run("disabled in store", func(t *testing.T) {
		store := new(MockProjectStore)
		store.On("AllBindings", mock.Anything).Return([]models.ProjectBinding{
			{Key: "CORE", Repository: "core", Enabled: true},
		}, nil)
		store.On("IsEnabled", mock.Anything, "CORE").Return(false, nil)

		_, bound, err := NewBindingResolver(store, createTestLogger()).Resolve(context.Background(), "core")

		require.NoError(t, err)
		assert.False(t, bound)
		store.AssertExpectations(t)
	})

	t.Run("lookup failure", func(t *testing.T) {
		dbErr := errors.New("db down")
		store := new(MockProjectStore)
		store.On("AllBindings", mock.Anything).Return([]models.ProjectBinding{
			{Key: "CORE", Repository: "core", Enabled: true},
			{Key: "WEB", Repository: "web", Enabled: true},
		}, nil)
		store.On("IsEnabled", mock.Anything, "CORE").Return(false, dbErr)

		_, bound, err := NewBindingResolver(store, createTestLogger()).Resolve(context.Background(), "core")

		assert.False(t, bound)
		assert.ErrorIs(t, err, dbErr)
		store.AssertNotCalled(t, "IsEnabled", mock.Anything, "WEB")
	})
}
