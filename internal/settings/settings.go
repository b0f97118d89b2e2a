// Package settings persists the administrator-controlled engine settings in a
// flat key/value store.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"reviewcreator/internal/models"
)

const (
	keyRunAs         = "reviewcreator.runAs"
	keyExemptUsers   = "reviewcreator.users"
	keyExemptGroups  = "reviewcreator.groups"
	keyCreateMode    = "reviewcreator.createMode"
	keyIterative     = "reviewcreator.iterative"
	keyMatchStrategy = "reviewcreator.matchStrategy"

	listSeparator = ";"
)

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Snapshot is a consistent read of every setting, taken once per commit.
type Snapshot struct {
	RunAs         string
	Policy        models.ScrutinyPolicy
	MatchStrategy models.MatchStrategy
}

func (m *Manager) Load(ctx context.Context) (Snapshot, error) {
	runAs, err := m.LoadRunAs(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	mode, err := m.LoadCreateMode(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	users, err := m.LoadExemptUsers(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	groups, err := m.LoadExemptGroups(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	strategy, err := m.LoadMatchStrategy(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		RunAs: runAs,
		Policy: models.ScrutinyPolicy{
			Mode:         mode,
			ExemptUsers:  users,
			ExemptGroups: groups,
		},
		MatchStrategy: strategy,
	}, nil
}

func (m *Manager) LoadRunAs(ctx context.Context) (string, error) {
	v, _, err := m.get(ctx, keyRunAs)
	return v, err
}

func (m *Manager) StoreRunAs(ctx context.Context, username string) error {
	return m.put(ctx, keyRunAs, username)
}

// LoadCreateMode falls back to ALWAYS when nothing or garbage is stored.
func (m *Manager) LoadCreateMode(ctx context.Context) (models.CreateMode, error) {
	v, ok, err := m.get(ctx, keyCreateMode)
	if err != nil || !ok {
		return models.CreateModeAlways, err
	}
	mode, perr := models.ParseCreateMode(v)
	if perr != nil {
		return models.CreateModeAlways, nil
	}
	return mode, nil
}

func (m *Manager) StoreCreateMode(ctx context.Context, mode models.CreateMode) error {
	if _, err := models.ParseCreateMode(string(mode)); err != nil {
		return err
	}
	return m.put(ctx, keyCreateMode, string(mode))
}

func (m *Manager) LoadExemptUsers(ctx context.Context) ([]string, error) {
	return m.loadList(ctx, keyExemptUsers)
}

func (m *Manager) StoreExemptUsers(ctx context.Context, usernames []string) error {
	return m.storeList(ctx, keyExemptUsers, usernames)
}

func (m *Manager) LoadExemptGroups(ctx context.Context) ([]string, error) {
	return m.loadList(ctx, keyExemptGroups)
}

func (m *Manager) StoreExemptGroups(ctx context.Context, groups []string) error {
	return m.storeList(ctx, keyExemptGroups, groups)
}

func (m *Manager) LoadIterative(ctx context.Context) (bool, error) {
	v, ok, err := m.get(ctx, keyIterative)
	if err != nil || !ok {
		return false, err
	}
	b, perr := strconv.ParseBool(v)
	if perr != nil {
		return false, nil
	}
	return b, nil
}

func (m *Manager) StoreIterative(ctx context.Context, iterative bool) error {
	return m.put(ctx, keyIterative, strconv.FormatBool(iterative))
}

// LoadMatchStrategy returns the configured append strategy. Without an
// explicit strategy the legacy iterative flag decides between marker-scan and
// always creating a new review.
func (m *Manager) LoadMatchStrategy(ctx context.Context) (models.MatchStrategy, error) {
	v, ok, err := m.get(ctx, keyMatchStrategy)
	if err != nil {
		return models.MatchNone, err
	}
	if ok {
		switch s := models.MatchStrategy(v); s {
		case models.MatchNone, models.MatchMarker, models.MatchDerivedKey:
			return s, nil
		}
	}
	iterative, err := m.LoadIterative(ctx)
	if err != nil {
		return models.MatchNone, err
	}
	if iterative {
		return models.MatchMarker, nil
	}
	return models.MatchNone, nil
}

func (m *Manager) StoreMatchStrategy(ctx context.Context, s models.MatchStrategy) error {
	switch s {
	case models.MatchNone, models.MatchMarker, models.MatchDerivedKey:
		return m.put(ctx, keyMatchStrategy, string(s))
	}
	return fmt.Errorf("unknown match strategy %q", s)
}

func (m *Manager) get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("load setting %s: %w", key, err)
	}
	return v, ok, nil
}

func (m *Manager) put(ctx context.Context, key, value string) error {
	if err := m.store.Put(ctx, key, value); err != nil {
		return fmt.Errorf("store setting %s: %w", key, err)
	}
	return nil
}

func (m *Manager) loadList(ctx context.Context, key string) ([]string, error) {
	v, ok, err := m.get(ctx, key)
	if err != nil || !ok {
		return []string{}, err
	}
	out := make([]string, 0)
	for _, s := range strings.Split(v, listSeparator) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Manager) storeList(ctx context.Context, key string, values []string) error {
	return m.put(ctx, key, strings.Join(values, listSeparator))
}
