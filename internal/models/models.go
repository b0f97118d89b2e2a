package models

import (
	"fmt"
	"time"
)

type Commit struct {
	Repository  string    `json:"repository" yaml:"repository"`
	ChangesetID string    `json:"changeset_id" yaml:"changeset_id"`
	Author      string    `json:"author" yaml:"author"`
	Message     string    `json:"message" yaml:"message"`
	Branches    []string  `json:"branches" yaml:"branches"`
	CommittedAt time.Time `json:"committed_at" yaml:"committed_at"`
}

// CommitEvent is the notification delivered by the commit source. It only
// names the changeset; the engine fetches the full Commit itself.
type CommitEvent struct {
	Repository  string `json:"repository"`
	ChangesetID string `json:"changeset_id"`
}

type ProjectBinding struct {
	Key              string   `json:"key" yaml:"key"`
	Repository       string   `json:"repository" yaml:"repository"`
	Enabled          bool     `json:"enabled" yaml:"enabled"`
	Moderator        string   `json:"moderator" yaml:"moderator"`
	DefaultReviewers []string `json:"default_reviewers" yaml:"default_reviewers"`
	DurationDays     *int     `json:"duration_days" yaml:"duration_days"`
	Objectives       string   `json:"objectives" yaml:"objectives"`
	AllowJoin        bool     `json:"allow_join" yaml:"allow_join"`
	BranchFilter     string   `json:"branch_filter" yaml:"branch_filter"`
}

type Identity struct {
	Username    string `json:"username" yaml:"username"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Email       string `json:"email" yaml:"email"`
	Active      bool   `json:"active" yaml:"active"`
}

// IdentityMap maps a VCS committer string to the internal user it belongs to.
// It is scoped to a single repository and a single processing run.
type IdentityMap map[string]Identity

func (m IdentityMap) Lookup(committer string) (Identity, bool) {
	id, ok := m[committer]
	return id, ok
}

type CreateMode string

const (
	CreateModeAlways CreateMode = "ALWAYS"
	CreateModeNever  CreateMode = "NEVER"
)

func ParseCreateMode(s string) (CreateMode, error) {
	switch CreateMode(s) {
	case CreateModeAlways, CreateModeNever:
		return CreateMode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCreateMode, s)
}

type ScrutinyPolicy struct {
	Mode         CreateMode `json:"mode"`
	ExemptUsers  []string   `json:"exempt_users"`
	ExemptGroups []string   `json:"exempt_groups"`
}

type MatchStrategy string

const (
	MatchNone       MatchStrategy = "none"
	MatchMarker     MatchStrategy = "marker"
	MatchDerivedKey MatchStrategy = "derived-key"
)

type ReviewState string

const (
	ReviewStateDraft    ReviewState = "Draft"
	ReviewStateApproval ReviewState = "Approval"
	ReviewStateReview   ReviewState = "Review"
	ReviewStateClosed   ReviewState = "Closed"
)

func (s ReviewState) IsOpen() bool {
	switch s {
	case ReviewStateDraft, ReviewStateApproval, ReviewStateReview:
		return true
	}
	return false
}

// ReviewAction names a workflow transition understood by the review store.
type ReviewAction string

const (
	ActionApprove ReviewAction = "action:approveReview"
	ActionClose   ReviewAction = "action:closeReview"
)

type Review struct {
	ID          string      `json:"id"`
	ProjectKey  string      `json:"project_key"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	State       ReviewState `json:"state"`
	Author      string      `json:"author"`
	Moderator   string      `json:"moderator"`
	Creator     string      `json:"creator"`
	AllowJoin   bool        `json:"allow_join"`
	DueDate     *time.Time  `json:"due_date,omitempty"`
	SearchKey   string      `json:"search_key,omitempty"`
	Reviewers   []string    `json:"reviewers"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Driver returns the identity that should act on an existing review: its
// moderator, or its creator when no moderator is set.
func (r Review) Driver() string {
	if r.Moderator != "" {
		return r.Moderator
	}
	return r.Creator
}

type Comment struct {
	ID        string    `json:"id"`
	ReviewID  string    `json:"review_id"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
