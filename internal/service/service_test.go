package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"reviewcreator/internal/models"
	"reviewcreator/internal/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *inmemory.Store
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := inmemory.NewStore()

	for _, u := range []models.Identity{
		{Username: "admin", Active: true},
		{Username: "mod", Active: true},
		{Username: "alice", Active: true},
		{Username: "bob", Active: true},
		{Username: "carol", Active: true},
	} {
		require.NoError(t, store.UpsertUser(ctx, u))
	}
	require.NoError(t, store.AddCommitterMapping(ctx, "alice", "core", "alice@host"))
	require.NoError(t, store.AddCommitterMapping(ctx, "carol", "core", "carol@host"))
	require.NoError(t, store.AddGroupMember(ctx, "leads", "carol"))
	require.NoError(t, store.UpsertBinding(ctx, models.ProjectBinding{
		Key:              "CORE",
		Repository:       "core",
		Enabled:          true,
		Moderator:        "mod",
		DefaultReviewers: []string{"alice", "mod", "bob", "bob"},
		AllowJoin:        true,
	}))

	svc := NewService(store, Options{}, createTestLogger())
	require.NoError(t, svc.Settings().StoreRunAs(ctx, "admin"))

	return &fixture{store: store, service: svc}
}

func (f *fixture) commit(t *testing.T, c models.Commit) models.CommitEvent {
	t.Helper()
	if c.Repository == "" {
		c.Repository = "core"
	}
	require.NoError(t, f.store.UpsertChangeset(context.Background(), c))
	return models.CommitEvent{Repository: c.Repository, ChangesetID: c.ChangesetID}
}

func TestProcessCommitCreatesReview(t *testing.T) {
	f := newFixture(t)
	ev := f.commit(t, models.Commit{
		ChangesetID: "c1",
		Author:      "alice@host",
		Message:     "Add login form\n\ndetails",
		Branches:    []string{"feature/login"},
	})

	out := f.service.ProcessCommit(context.Background(), ev)

	require.Equal(t, models.OutcomeCreated, out.Kind, out.String())
	assert.Equal(t, "CORE-1", out.ReviewID)

	reviews := f.store.Reviews()
	require.Len(t, reviews, 1)
	r := reviews[0]
	assert.Equal(t, models.ReviewStateReview, r.State)
	assert.Equal(t, "alice", r.Author)
	assert.Equal(t, "alice", r.Creator)
	assert.Equal(t, "mod", r.Moderator)
	assert.Equal(t, "Add login form", r.Title)
	assert.Equal(t, []string{"bob"}, r.Reviewers)
	assert.True(t, r.AllowJoin)
	assert.Equal(t, []string{"c1"}, f.store.Changesets(r.ID))

	comments := f.store.Comments(r.ID)
	require.Len(t, comments, 1)
	assert.Equal(t, "alice", comments[0].Author)
	assert.Equal(t, createdComment, comments[0].Message)
}

func TestProcessCommitRedeliveryAppends(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.service.Settings().StoreMatchStrategy(context.Background(), models.MatchMarker))
	ev := f.commit(t, models.Commit{
		ChangesetID: "c1",
		Author:      "alice@host",
		Message:     "Work for CORE-1",
		Branches:    []string{"feature/login"},
	})

	first := f.service.ProcessCommit(context.Background(), ev)
	second := f.service.ProcessCommit(context.Background(), ev)

	assert.Equal(t, models.Created("CORE-1"), first)
	assert.Equal(t, models.Appended("CORE-1"), second)
	assert.Len(t, f.store.Reviews(), 1)

	comments := f.store.Comments("CORE-1")
	require.Len(t, comments, 2)
	assert.Equal(t, "mod", comments[1].Author)
	assert.Contains(t, comments[1].Message, "Work for CORE-1")
}

func TestProcessCommitAppendsByMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.Settings().StoreIterative(ctx, true))

	first := f.service.ProcessCommit(ctx, f.commit(t, models.Commit{
		ChangesetID: "c1", Author: "alice@host", Message: "start", Branches: []string{"feature/a"},
	}))
	second := f.service.ProcessCommit(ctx, f.commit(t, models.Commit{
		ChangesetID: "c2", Author: "alice@host", Message: "follow up on CORE-1", Branches: []string{"feature/a"},
	}))

	assert.Equal(t, models.OutcomeCreated, first.Kind)
	assert.Equal(t, models.Appended("CORE-1"), second)
	assert.Equal(t, []string{"c1", "c2"}, f.store.Changesets("CORE-1"))
}

func TestProcessCommitAppendsByDerivedKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.Settings().StoreMatchStrategy(ctx, models.MatchDerivedKey))

	first := f.service.ProcessCommit(ctx, f.commit(t, models.Commit{
		ChangesetID: "c1", Author: "alice@host", Message: "one", Branches: []string{"feature/a"},
	}))
	second := f.service.ProcessCommit(ctx, f.commit(t, models.Commit{
		ChangesetID: "c2", Author: "alice@host", Message: "two", Branches: []string{"feature/a"},
	}))
	other := f.service.ProcessCommit(ctx, f.commit(t, models.Commit{
		ChangesetID: "c3", Author: "alice@host", Message: "three", Branches: []string{"feature/b"},
	}))

	assert.Equal(t, models.Created("CORE-1"), first)
	assert.Equal(t, models.Appended("CORE-1"), second)
	assert.Equal(t, models.Created("CORE-2"), other)

	r, ok, err := f.store.GetReview(ctx, "CORE-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "featurea-1", r.SearchKey)
}

func TestProcessCommitDerivedKeyStaysInProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddCommitterMapping(ctx, "alice", "web", "alice@host"))
	require.NoError(t, f.store.UpsertBinding(ctx, models.ProjectBinding{
		Key: "WEB", Repository: "web", Enabled: true, Moderator: "mod",
	}))
	require.NoError(t, f.service.Settings().StoreMatchStrategy(ctx, models.MatchDerivedKey))

	core := f.service.ProcessCommit(ctx, f.commit(t, models.Commit{
		ChangesetID: "c1", Author: "alice@host", Message: "core side", Branches: []string{"feature/x"},
	}))
	web := f.service.ProcessCommit(ctx, f.commit(t, models.Commit{
		Repository: "web", ChangesetID: "w1", Author: "alice@host", Message: "web side", Branches: []string{"feature/x"},
	}))

	assert.Equal(t, models.Created("CORE-1"), core)
	assert.Equal(t, models.Created("WEB-1"), web)
	assert.Equal(t, []string{"c1"}, f.store.Changesets("CORE-1"))
	assert.Equal(t, []string{"w1"}, f.store.Changesets("WEB-1"))
}

func TestProcessCommitConcurrent(t *testing.T) {
	const n = 20
	f := newFixture(t)

	events := make([]models.CommitEvent, n)
	for i := range events {
		events[i] = f.commit(t, models.Commit{
			ChangesetID: fmt.Sprintf("c%d", i),
			Author:      "alice@host",
			Message:     fmt.Sprintf("change %d", i),
			Branches:    []string{fmt.Sprintf("feature/%d", i)},
		})
	}

	outcomes := make([]models.Outcome, n)
	var wg sync.WaitGroup
	for i, ev := range events {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = f.service.ProcessCommit(context.Background(), ev)
		}()
	}
	wg.Wait()

	ids := make(map[string]struct{}, n)
	for _, out := range outcomes {
		require.Equal(t, models.OutcomeCreated, out.Kind, out.String())
		ids[out.ReviewID] = struct{}{}
	}
	assert.Len(t, ids, n)
	assert.Len(t, f.store.Reviews(), n)
}

func TestProcessCommitClosedReviewNotReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.Settings().StoreMatchStrategy(ctx, models.MatchMarker))

	first := f.service.ProcessCommit(ctx, f.commit(t, models.Commit{
		ChangesetID: "c1", Author: "alice@host", Message: "CORE-1", Branches: []string{"feature/a"},
	}))
	require.Equal(t, models.OutcomeCreated, first.Kind)
	_, err := f.store.Transition(ctx, "CORE-1", models.ActionClose)
	require.NoError(t, err)

	second := f.service.ProcessCommit(ctx, f.commit(t, models.Commit{
		ChangesetID: "c2", Author: "alice@host", Message: "CORE-1 again", Branches: []string{"feature/a"},
	}))

	assert.Equal(t, models.Created("CORE-2"), second)
}

func TestProcessCommitUnmappedAuthor(t *testing.T) {
	f := newFixture(t)

	out := f.service.ProcessCommit(context.Background(), f.commit(t, models.Commit{
		ChangesetID: "c1", Author: "someone@elsewhere", Message: "drive-by", Branches: []string{"fix/typo"},
	}))

	require.Equal(t, models.OutcomeCreated, out.Kind, out.String())
	r, _, err := f.store.GetReview(context.Background(), out.ReviewID)
	require.NoError(t, err)
	assert.Equal(t, "mod", r.Author)
	assert.Equal(t, "mod", r.Creator)
	assert.ElementsMatch(t, []string{"alice", "bob"}, r.Reviewers)
}

func TestProcessCommitSkipped(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, f *fixture)
		commit models.Commit
		want   models.SkipReason
	}{
		{
			name: "plugin disabled",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.service.Settings().StoreRunAs(context.Background(), ""))
			},
			commit: models.Commit{ChangesetID: "c1", Author: "alice@host", Branches: []string{"feature/a"}},
			want:   models.SkipPluginDisabled,
		},
		{
			name:   "mainline branch",
			commit: models.Commit{ChangesetID: "c1", Author: "alice@host", Branches: []string{"master"}},
			want:   models.SkipBranchFiltered,
		},
		{
			name: "branch filter",
			setup: func(t *testing.T, f *fixture) {
				b := models.ProjectBinding{Key: "CORE", Repository: "core", Enabled: true, Moderator: "mod", BranchFilter: "develop"}
				require.NoError(t, f.store.UpsertBinding(context.Background(), b))
			},
			commit: models.Commit{ChangesetID: "c1", Author: "alice@host", Branches: []string{"feature/a"}},
			want:   models.SkipBranchFiltered,
		},
		{
			name: "exempt user",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.service.Settings().StoreExemptUsers(context.Background(), []string{"alice"}))
			},
			commit: models.Commit{ChangesetID: "c1", Author: "alice@host", Branches: []string{"feature/a"}},
			want:   models.SkipAuthorExempt,
		},
		{
			name: "exempt group",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.service.Settings().StoreExemptGroups(context.Background(), []string{"leads"}))
			},
			commit: models.Commit{ChangesetID: "c1", Author: "carol@host", Branches: []string{"feature/a"}},
			want:   models.SkipAuthorExempt,
		},
		{
			name: "NEVER mode outside list",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.service.Settings().StoreCreateMode(context.Background(), models.CreateModeNever))
			},
			commit: models.Commit{ChangesetID: "c1", Author: "alice@host", Branches: []string{"feature/a"}},
			want:   models.SkipAuthorExempt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}

			out := f.service.ProcessCommit(context.Background(), f.commit(t, tt.commit))

			assert.Equal(t, models.Skipped(tt.want), out)
			assert.Empty(t, f.store.Reviews())
		})
	}
}

func TestProcessCommitFailed(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, f *fixture)
		event      func(t *testing.T, f *fixture) models.CommitEvent
		wantErr    error
		wantConfig bool
	}{
		{
			name: "no moderator",
			setup: func(t *testing.T, f *fixture) {
				b := models.ProjectBinding{Key: "CORE", Repository: "core", Enabled: true, Moderator: "ghost"}
				require.NoError(t, f.store.UpsertBinding(context.Background(), b))
			},
			wantErr:    models.ErrNoModerator,
			wantConfig: true,
		},
		{
			name: "not bound",
			event: func(t *testing.T, f *fixture) models.CommitEvent {
				return f.commit(t, models.Commit{Repository: "orphan", ChangesetID: "c1", Branches: []string{"feature/a"}})
			},
			wantErr:    models.ErrNotBound,
			wantConfig: true,
		},
		{
			name: "binding conflict",
			setup: func(t *testing.T, f *fixture) {
				b := models.ProjectBinding{Key: "DUP", Repository: "core", Enabled: true, Moderator: "mod"}
				require.NoError(t, f.store.UpsertBinding(context.Background(), b))
			},
			wantErr:    models.ErrBindingConflict,
			wantConfig: true,
		},
		{
			name: "changeset missing",
			event: func(*testing.T, *fixture) models.CommitEvent {
				return models.CommitEvent{Repository: "core", ChangesetID: "nope"}
			},
			wantErr: models.ErrChangesetNotFound,
		},
		{
			name: "cannot act as admin",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.service.Settings().StoreRunAs(context.Background(), "ghost"))
			},
			wantErr: models.ErrCannotActAs,
		},
		{
			name: "inactive creator",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.store.UpsertUser(context.Background(), models.Identity{Username: "alice", Active: false}))
			},
			wantErr: models.ErrCannotActAs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			var ev models.CommitEvent
			if tt.event != nil {
				ev = tt.event(t, f)
			} else {
				ev = f.commit(t, models.Commit{ChangesetID: "c1", Author: "alice@host", Message: "m", Branches: []string{"feature/a"}})
			}

			out := f.service.ProcessCommit(context.Background(), ev)

			require.Equal(t, models.OutcomeFailed, out.Kind, out.String())
			assert.ErrorIs(t, out.Err, tt.wantErr)
			assert.Equal(t, tt.wantConfig, IsConfigError(out.Err))
			assert.Empty(t, f.store.Reviews())
		})
	}
}

type failingAppendStore struct {
	*inmemory.Store
}

func (s failingAppendStore) AddChangesets(context.Context, string, string, []string) error {
	return errors.New("review locked")
}

func TestProcessCommitAppendFailureCreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewService(failingAppendStore{f.store}, Options{}, createTestLogger())
	require.NoError(t, svc.Settings().StoreMatchStrategy(ctx, models.MatchMarker))

	first := svc.ProcessCommit(ctx, f.commit(t, models.Commit{
		ChangesetID: "c1", Author: "alice@host", Message: "CORE-1", Branches: []string{"feature/a"},
	}))
	second := svc.ProcessCommit(ctx, f.commit(t, models.Commit{
		ChangesetID: "c2", Author: "alice@host", Message: "CORE-1", Branches: []string{"feature/a"},
	}))

	assert.Equal(t, models.Created("CORE-1"), first)
	assert.Equal(t, models.Created("CORE-2"), second)
}

func TestProcessCommitReviewerFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.UpsertBinding(ctx, models.ProjectBinding{
		Key: "CORE", Repository: "core", Enabled: true, Moderator: "mod", DefaultReviewers: []string{"nobody"},
	}))

	out := f.service.ProcessCommit(ctx, f.commit(t, models.Commit{
		ChangesetID: "c1", Author: "alice@host", Message: "m", Branches: []string{"feature/a"},
	}))

	require.Equal(t, models.OutcomeCreated, out.Kind, out.String())
	r, _, err := f.store.GetReview(ctx, out.ReviewID)
	require.NoError(t, err)
	assert.Empty(t, r.Reviewers)
	assert.Equal(t, models.ReviewStateReview, r.State)
}

func TestProcessCommitCanceledDuringApproveDelay(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, Options{ApproveDelay: MaxApproveDelay}, createTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := svc.ProcessCommit(ctx, f.commit(t, models.Commit{
		ChangesetID: "c1", Author: "alice@host", Message: "m", Branches: []string{"feature/a"},
	}))

	require.Equal(t, models.OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestReviewersFor(t *testing.T) {
	review := models.Review{Author: "alice", Moderator: "mod"}

	got := reviewersFor([]string{"bob", "alice", "", "mod", "carol", "bob"}, review)

	assert.Equal(t, []string{"bob", "carol"}, got)
}
