// Package seed loads users, project bindings, changesets and engine settings
// from a YAML file into a backend.
package seed

import (
	"context"
	"fmt"
	"os"

	"reviewcreator/internal/models"
	"reviewcreator/internal/settings"

	"gopkg.in/yaml.v3"
)

type File struct {
	Settings   Settings                `yaml:"settings"`
	Users      []User                  `yaml:"users"`
	Bindings   []models.ProjectBinding `yaml:"bindings"`
	Changesets []models.Commit         `yaml:"changesets"`
}

type Settings struct {
	RunAs         string   `yaml:"run_as"`
	CreateMode    string   `yaml:"create_mode"`
	ExemptUsers   []string `yaml:"exempt_users"`
	ExemptGroups  []string `yaml:"exempt_groups"`
	MatchStrategy string   `yaml:"match_strategy"`
}

type User struct {
	Username    string `yaml:"username"`
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
	// Active defaults to true when the key is absent.
	Active *bool    `yaml:"active"`
	Groups []string `yaml:"groups"`
	// Committers maps a repository to the committer names used there.
	Committers map[string][]string `yaml:"committers"`
}

func (u User) Identity() models.Identity {
	return models.Identity{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Active:      u.Active == nil || *u.Active,
	}
}

// Target is what a backend must offer to be seeded.
type Target interface {
	settings.Store
	UpsertUser(ctx context.Context, u models.Identity) error
	AddGroupMember(ctx context.Context, group, username string) error
	AddCommitterMapping(ctx context.Context, username, repository, committer string) error
	UpsertBinding(ctx context.Context, b models.ProjectBinding) error
	UpsertChangeset(ctx context.Context, c models.Commit) error
}

func Load(path string) (*File, error) {
	// #nosec G304 -- seed path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("unmarshal seed yaml: %w", err)
	}
	for i, u := range f.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("user #%d: username is required", i+1)
		}
	}
	for i, b := range f.Bindings {
		if b.Key == "" || b.Repository == "" {
			return nil, fmt.Errorf("binding #%d: key and repository are required", i+1)
		}
	}
	if f.Settings.CreateMode != "" {
		if _, err := models.ParseCreateMode(f.Settings.CreateMode); err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
	}
	return f, nil
}

// Apply writes f into t. Settings left empty in the file are not touched.
func Apply(ctx context.Context, t Target, f *File) error {
	for _, u := range f.Users {
		if err := t.UpsertUser(ctx, u.Identity()); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		for _, g := range u.Groups {
			if err := t.AddGroupMember(ctx, g, u.Username); err != nil {
				return fmt.Errorf("seed group %s for %s: %w", g, u.Username, err)
			}
		}
		for repo, names := range u.Committers {
			for _, c := range names {
				if err := t.AddCommitterMapping(ctx, u.Username, repo, c); err != nil {
					return fmt.Errorf("seed committer %s for %s: %w", c, u.Username, err)
				}
			}
		}
	}

	for _, b := range f.Bindings {
		if err := t.UpsertBinding(ctx, b); err != nil {
			return fmt.Errorf("seed binding %s: %w", b.Key, err)
		}
	}

	for _, c := range f.Changesets {
		if err := t.UpsertChangeset(ctx, c); err != nil {
			return fmt.Errorf("seed changeset %s:%s: %w", c.Repository, c.ChangesetID, err)
		}
	}

	return applySettings(ctx, settings.NewManager(t), f.Settings)
}

func applySettings(ctx context.Context, m *settings.Manager, s Settings) error {
	if s.RunAs != "" {
		if err := m.StoreRunAs(ctx, s.RunAs); err != nil {
			return err
		}
	}
	if s.CreateMode != "" {
		if err := m.StoreCreateMode(ctx, models.CreateMode(s.CreateMode)); err != nil {
			return err
		}
	}
	if s.ExemptUsers != nil {
		if err := m.StoreExemptUsers(ctx, s.ExemptUsers); err != nil {
			return err
		}
	}
	if s.ExemptGroups != nil {
		if err := m.StoreExemptGroups(ctx, s.ExemptGroups); err != nil {
			return err
		}
	}
	if s.MatchStrategy != "" {
		if err := m.StoreMatchStrategy(ctx, models.MatchStrategy(s.MatchStrategy)); err != nil {
			return err
		}
	}
	return nil
}
