package service

import (
	"context"
	"errors"
	"testing"

	"reviewcreator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groups(members map[string][]string) GroupMembership {
	return func(_ context.Context, username, group string) (bool, error) {
		for _, m := range members[group] {
			if m == username {
				return true, nil
			}
		}
		return false, nil
	}
}

func TestIsUnderScrutiny(t *testing.T) {
	ids := models.IdentityMap{
		"alice <a@x>": {Username: "alice", Active: true},
		"bob":         {Username: "bob", Active: true},
		"carol":       {Username: "carol", Active: true},
	}
	membership := groups(map[string][]string{"leads": {"carol"}})
	exempt := func(mode models.CreateMode) models.ScrutinyPolicy {
		return models.ScrutinyPolicy{Mode: mode, ExemptUsers: []string{"alice"}, ExemptGroups: []string{"leads"}}
	}

	tests := []struct {
		name      string
		committer string
		alwaysOut bool
		neverOut  bool
	}{
		{name: "exempt user", committer: "alice <a@x>", alwaysOut: false, neverOut: true},
		{name: "exempt group member", committer: "carol", alwaysOut: false, neverOut: true},
		{name: "not exempt", committer: "bob", alwaysOut: true, neverOut: false},
		{name: "unmapped committer", committer: "mallory", alwaysOut: true, neverOut: true},
	}

	e := NewScrutinyEvaluator(createTestLogger())
	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.IsUnderScrutiny(ctx, tt.committer, ids, exempt(models.CreateModeAlways), membership)
			require.NoError(t, err)
			assert.Equal(t, tt.alwaysOut, got, "ALWAYS")

			got, err = e.IsUnderScrutiny(ctx, tt.committer, ids, exempt(models.CreateModeNever), membership)
			require.NoError(t, err)
			assert.Equal(t, tt.neverOut, got, "NEVER")
		})
	}
}

func TestIsUnderScrutinyUnmappedIgnoresMode(t *testing.T) {
	e := NewScrutinyEvaluator(createTestLogger())

	got, err := e.IsUnderScrutiny(context.Background(), "ghost", models.IdentityMap{},
		models.ScrutinyPolicy{Mode: "bogus"}, groups(nil))

	require.NoError(t, err)
	assert.True(t, got)
}

func TestIsUnderScrutinyInvalidMode(t *testing.T) {
	e := NewScrutinyEvaluator(createTestLogger())
	ids := models.IdentityMap{"bob": {Username: "bob"}}

	_, err := e.IsUnderScrutiny(context.Background(), "bob", ids,
		models.ScrutinyPolicy{Mode: "SOMETIMES"}, groups(nil))

	assert.ErrorIs(t, err, models.ErrInvalidCreateMode)
}

func TestIsUnderScrutinyGroupLookupFails(t *testing.T) {
	e := NewScrutinyEvaluator(createTestLogger())
	ids := models.IdentityMap{"bob": {Username: "bob"}}
	boom := errors.New("directory down")

	_, err := e.IsUnderScrutiny(context.Background(), "bob", ids,
		models.ScrutinyPolicy{Mode: models.CreateModeAlways, ExemptGroups: []string{"leads"}},
		func(context.Context, string, string) (bool, error) { return false, boom })

	assert.ErrorIs(t, err, boom)
}
