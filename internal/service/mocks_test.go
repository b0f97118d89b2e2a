package service

import (
	"context"
	"io"
	"log/slog"

	"reviewcreator/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockProjectStore struct {
	mock.Mock
}

func (m *MockProjectStore) AllBindings(ctx context.Context) ([]models.ProjectBinding, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.ProjectBinding), args.Error(1)
}

func (m *MockProjectStore) IsEnabled(ctx context.Context, projectKey string) (bool, error) {
	args := m.Called(ctx, projectKey)
	return args.Bool(0), args.Error(1)
}

func (m *MockProjectStore) BranchFilter(ctx context.Context, repository string) (string, error) {
	args := m.Called(ctx, repository)
	return args.String(0), args.Error(1)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) AllUsers(ctx context.Context) ([]models.Identity, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Identity), args.Error(1)
}

func (m *MockDirectory) CommitterMappings(ctx context.Context, username, repository string) ([]string, error) {
	args := m.Called(ctx, username, repository)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDirectory) GetUser(ctx context.Context, name string) (models.Identity, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(models.Identity), args.Error(1)
}

func (m *MockDirectory) IsUserInGroup(ctx context.Context, username, group string) (bool, error) {
	args := m.Called(ctx, username, group)
	return args.Bool(0), args.Error(1)
}

type MockReviewStore struct {
	mock.Mock
}

func (m *MockReviewStore) CreateReview(ctx context.Context, tmpl models.ReviewTemplate, repository string, changesetIDs []string) (models.Review, error) {
	args := m.Called(ctx, tmpl, repository, changesetIDs)
	return args.Get(0).(models.Review), args.Error(1)
}

func (m *MockReviewStore) AddChangesets(ctx context.Context, reviewID, repository string, changesetIDs []string) error {
	args := m.Called(ctx, reviewID, repository, changesetIDs)
	return args.Error(0)
}

func (m *MockReviewStore) AddReviewers(ctx context.Context, reviewID string, usernames []string) error {
	args := m.Called(ctx, reviewID, usernames)
	return args.Error(0)
}

func (m *MockReviewStore) Transition(ctx context.Context, reviewID string, action models.ReviewAction) (models.Review, error) {
	args := m.Called(ctx, reviewID, action)
	return args.Get(0).(models.Review), args.Error(1)
}

func (m *MockReviewStore) AddComment(ctx context.Context, reviewID, message string) (models.Comment, error) {
	args := m.Called(ctx, reviewID, message)
	return args.Get(0).(models.Comment), args.Error(1)
}

func (m *MockReviewStore) GetReview(ctx context.Context, reviewID string) (models.Review, bool, error) {
	args := m.Called(ctx, reviewID)
	return args.Get(0).(models.Review), args.Bool(1), args.Error(2)
}

func (m *MockReviewStore) SearchByKey(ctx context.Context, key string) ([]models.Review, error) {
	args := m.Called(ctx, key)
	return args.Get(0).([]models.Review), args.Error(1)
}

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
