// Package inmemory is a process-local backend for every collaborator the
// engine consumes. It is used for local runs and tests.
package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"reviewcreator/internal/actor"
	"reviewcreator/internal/models"
)

type changesetKey struct {
	repository string
	id         string
}

type mapping struct {
	repository string
	committer  string
}

type Store struct {
	mu sync.RWMutex

	users      map[string]models.Identity
	userOrder  []string
	groups     map[string]map[string]struct{}
	committers map[string][]mapping

	bindings   map[string]models.ProjectBinding
	changesets map[changesetKey]models.Commit

	reviews          map[string]models.Review
	reviewChangesets map[string][]changesetKey
	comments         map[string][]models.Comment
	counters         map[string]int

	settings map[string]string
	nowFunc  func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:            make(map[string]models.Identity),
		groups:           make(map[string]map[string]struct{}),
		committers:       make(map[string][]mapping),
		bindings:         make(map[string]models.ProjectBinding),
		changesets:       make(map[changesetKey]models.Commit),
		reviews:          make(map[string]models.Review),
		reviewChangesets: make(map[string][]changesetKey),
		comments:         make(map[string][]models.Comment),
		counters:         make(map[string]int),
		settings:         make(map[string]string),
		nowFunc:          time.Now,
	}
}

func (s *Store) OnStart(context.Context) error { return nil }
func (s *Store) OnStop(context.Context) error  { return nil }

func (s *Store) UpsertUser(_ context.Context, u models.Identity) error {
	if u.Username == "" {
		return fmt.Errorf("upsert user: empty username")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; !ok {
		s.userOrder = append(s.userOrder, u.Username)
	}
	s.users[u.Username] = u
	return nil
}

func (s *Store) AddGroupMember(_ context.Context, group, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.groups[group]
	if !ok {
		members = make(map[string]struct{})
		s.groups[group] = members
	}
	members[username] = struct{}{}
	return nil
}

func (s *Store) AddCommitterMapping(_ context.Context, username, repository, committer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := mapping{repository: repository, committer: committer}
	if !slices.Contains(s.committers[username], m) {
		s.committers[username] = append(s.committers[username], m)
	}
	return nil
}

func (s *Store) UpsertBinding(_ context.Context, b models.ProjectBinding) error {
	if b.Key == "" {
		return fmt.Errorf("upsert binding: empty project key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b.DefaultReviewers = slices.Clone(b.DefaultReviewers)
	s.bindings[b.Key] = b
	return nil
}

func (s *Store) UpsertChangeset(_ context.Context, c models.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Branches = slices.Clone(c.Branches)
	s.changesets[changesetKey{c.Repository, c.ChangesetID}] = c
	return nil
}

// GetChangeset implements the commit source.
func (s *Store) GetChangeset(_ context.Context, repository, changesetID string) (models.Commit, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.changesets[changesetKey{repository, changesetID}]
	if !ok {
		return models.Commit{}, false, nil
	}
	c.Branches = slices.Clone(c.Branches)
	return c, true, nil
}

func (s *Store) AllBindings(context.Context) ([]models.ProjectBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ProjectBinding, 0, len(s.bindings))
	for _, b := range s.bindings {
		b.DefaultReviewers = slices.Clone(b.DefaultReviewers)
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b models.ProjectBinding) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *Store) IsEnabled(_ context.Context, projectKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bindings[projectKey].Enabled, nil
}

func (s *Store) BranchFilter(_ context.Context, repository string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bindings {
		if b.Repository == repository && b.Enabled && b.BranchFilter != "" {
			return b.BranchFilter, nil
		}
	}
	return "", nil
}

func (s *Store) AllUsers(context.Context) ([]models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Identity, 0, len(s.userOrder))
	for _, name := range s.userOrder {
		out = append(out, s.users[name])
	}
	return out, nil
}

func (s *Store) CommitterMappings(_ context.Context, username, repository string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for _, m := range s.committers[username] {
		if m.repository == repository {
			out = append(out, m.committer)
		}
	}
	return out, nil
}

func (s *Store) GetUser(_ context.Context, name string) (models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[name]
	if !ok {
		return models.Identity{}, fmt.Errorf("%w: %s", models.ErrUnknownIdentity, name)
	}
	return u, nil
}

func (s *Store) IsUserInGroup(_ context.Context, username, group string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.groups[group][username]
	return ok, nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *Store) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func actingAs(ctx context.Context) string {
	name, _ := actor.FromContext(ctx)
	return name
}
