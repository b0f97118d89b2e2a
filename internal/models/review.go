package models

import "time"

// ReviewTemplate is the immutable parameter set used to create a review.
// Construct it with NewReviewTemplate; the zero value is not meaningful.
type ReviewTemplate struct {
	projectKey  string
	title       string
	description string
	author      Identity
	moderator   Identity
	creator     Identity
	allowJoin   bool
	dueDate     *time.Time
	searchKey   string
}

type ReviewTemplateParams struct {
	ProjectKey  string
	Title       string
	Description string
	Author      Identity
	Moderator   Identity
	Creator     Identity
	AllowJoin   bool
	DueDate     *time.Time
	SearchKey   string
}

func NewReviewTemplate(p ReviewTemplateParams) ReviewTemplate {
	var due *time.Time
	if p.DueDate != nil {
		d := *p.DueDate
		due = &d
	}
	return ReviewTemplate{
		projectKey:  p.ProjectKey,
		title:       p.Title,
		description: p.Description,
		author:      p.Author,
		moderator:   p.Moderator,
		creator:     p.Creator,
		allowJoin:   p.AllowJoin,
		dueDate:     due,
		searchKey:   p.SearchKey,
	}
}

func (t ReviewTemplate) ProjectKey() string  { return t.projectKey }
func (t ReviewTemplate) Title() string       { return t.title }
func (t ReviewTemplate) Description() string { return t.description }
func (t ReviewTemplate) Author() Identity    { return t.author }
func (t ReviewTemplate) Moderator() Identity { return t.moderator }
func (t ReviewTemplate) Creator() Identity   { return t.creator }
func (t ReviewTemplate) AllowJoin() bool     { return t.allowJoin }
func (t ReviewTemplate) SearchKey() string   { return t.searchKey }

func (t ReviewTemplate) DueDate() *time.Time {
	if t.dueDate == nil {
		return nil
	}
	d := *t.dueDate
	return &d
}

type OutcomeKind string

const (
	OutcomeCreated  OutcomeKind = "created"
	OutcomeAppended OutcomeKind = "appended"
	OutcomeSkipped  OutcomeKind = "skipped"
	OutcomeFailed   OutcomeKind = "failed"
)

type SkipReason string

const (
	SkipPluginDisabled SkipReason = "plugin-disabled"
	SkipBranchFiltered SkipReason = "branch-filtered"
	SkipAuthorExempt   SkipReason = "author-exempt"
)

// Outcome is the result of processing one commit.
type Outcome struct {
	Kind     OutcomeKind
	ReviewID string
	Reason   SkipReason
	Err      error
}

func Created(reviewID string) Outcome  { return Outcome{Kind: OutcomeCreated, ReviewID: reviewID} }
func Appended(reviewID string) Outcome { return Outcome{Kind: OutcomeAppended, ReviewID: reviewID} }
func Skipped(reason SkipReason) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}
func Failed(err error) Outcome { return Outcome{Kind: OutcomeFailed, Err: err} }

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeCreated, OutcomeAppended:
		return string(o.Kind) + "(" + o.ReviewID + ")"
	case OutcomeSkipped:
		return string(o.Kind) + "(" + string(o.Reason) + ")"
	case OutcomeFailed:
		if o.Err != nil {
			return string(o.Kind) + "(" + o.Err.Error() + ")"
		}
	}
	return string(o.Kind)
}
