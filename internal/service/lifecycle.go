package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reviewcreator/internal/actor"
	"reviewcreator/internal/models"
	"reviewcreator/internal/repository"
	"reviewcreator/internal/settings"
)

// MaxApproveDelay bounds the pause before a new review is approved.
const MaxApproveDelay = 500 * time.Millisecond

const createdComment = "This review was created by the Automatic Review Creator."

type Driver struct {
	projects  repository.ProjectStore
	dir       repository.IdentityDirectory
	reviews   repository.ReviewStore
	imp       *actor.Impersonator
	scrutiny  *ScrutinyEvaluator
	matcher   *Matcher
	templates *TemplateBuilder
	delay     time.Duration
	logger    *slog.Logger
}

type DriverDeps struct {
	Projects     repository.ProjectStore
	Directory    repository.IdentityDirectory
	Reviews      repository.ReviewStore
	Impersonator *actor.Impersonator
	NowFunc      func() time.Time
	ApproveDelay time.Duration
}

func NewDriver(deps DriverDeps, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	delay := min(max(deps.ApproveDelay, 0), MaxApproveDelay)
	return &Driver{
		projects:  deps.Projects,
		dir:       deps.Directory,
		reviews:   deps.Reviews,
		imp:       deps.Impersonator,
		scrutiny:  NewScrutinyEvaluator(logger),
		matcher:   NewMatcher(deps.Reviews, logger),
		templates: NewTemplateBuilder(deps.Directory, deps.NowFunc, logger),
		delay:     delay,
		logger:    logger,
	}
}

// CreateOrAppend runs the per-commit decision sequence for an enrolled
// project: branch filter, scrutiny, append to an open review, or create one.
func (d *Driver) CreateOrAppend(ctx context.Context, commit models.Commit, binding models.ProjectBinding,
	ids models.IdentityMap, cfg settings.Snapshot) models.Outcome {

	log := loggerFrom(ctx, d.logger)

	filter, err := d.projects.BranchFilter(ctx, commit.Repository)
	if err != nil {
		return models.Failed(fmt.Errorf("load branch filter: %w", err))
	}
	branch, ok := EligibleBranch(commit.Branches, filter)
	if !ok {
		log.Info("commit not on an eligible branch", "branches", commit.Branches, "filter", filter)
		return models.Skipped(models.SkipBranchFiltered)
	}

	under, err := d.scrutiny.IsUnderScrutiny(ctx, commit.Author, ids, cfg.Policy, d.dir.IsUserInGroup)
	if err != nil {
		return models.Failed(err)
	}
	if !under {
		log.Info("author not under scrutiny", "committer", commit.Author)
		return models.Skipped(models.SkipAuthorExempt)
	}

	if review, found := d.matcher.FindOpenReview(ctx, commit, binding, branch, cfg.MatchStrategy); found {
		if err := d.appendTo(ctx, review, commit); err != nil {
			log.Warn("failed to append changeset, creating a new review", "review_id", review.ID, "error", err)
		} else {
			log.Info("appended changeset to review", "review_id", review.ID)
			return models.Appended(review.ID)
		}
	}

	var searchKey string
	if cfg.MatchStrategy == models.MatchDerivedKey {
		searchKey = DerivedReviewKey(branch)
	}
	tmpl, ok := d.templates.Build(ctx, commit, binding, ids, searchKey)
	if !ok {
		return models.Failed(fmt.Errorf("%w: project %s", models.ErrNoModerator, binding.Key))
	}

	review, err := actor.RunAs(ctx, d.imp, tmpl.Creator().Username, func(ctx context.Context) (models.Review, error) {
		return d.create(ctx, tmpl, commit, binding)
	})
	if err != nil {
		return models.Failed(err)
	}

	log.Info("auto-created review", "review_id", review.ID, "moderator", review.Moderator, "author", review.Author)
	return models.Created(review.ID)
}

func (d *Driver) appendTo(ctx context.Context, review models.Review, commit models.Commit) error {
	return actor.Do(ctx, d.imp, review.Driver(), func(ctx context.Context) error {
		if err := d.reviews.AddChangesets(ctx, review.ID, commit.Repository, []string{commit.ChangesetID}); err != nil {
			return fmt.Errorf("add changeset: %w", err)
		}
		d.comment(ctx, review.ID, appendedComment(commit))
		return nil
	})
}

func (d *Driver) create(ctx context.Context, tmpl models.ReviewTemplate, commit models.Commit,
	binding models.ProjectBinding) (models.Review, error) {

	log := loggerFrom(ctx, d.logger)

	review, err := d.reviews.CreateReview(ctx, tmpl, commit.Repository, []string{commit.ChangesetID})
	if err != nil {
		return models.Review{}, fmt.Errorf("create review: %w", err)
	}

	if reviewers := reviewersFor(binding.DefaultReviewers, review); len(reviewers) > 0 {
		if err := d.reviews.AddReviewers(ctx, review.ID, reviewers); err != nil {
			log.Warn("failed to add default reviewers", "review_id", review.ID, "reviewers", reviewers, "error", err)
		}
	}

	d.comment(ctx, review.ID, createdComment)

	if d.delay > 0 {
		select {
		case <-ctx.Done():
			return review, ctx.Err()
		case <-time.After(d.delay):
		}
	}

	approved, err := d.reviews.Transition(ctx, review.ID, models.ActionApprove)
	if err != nil {
		return review, fmt.Errorf("approve review %s: %w", review.ID, err)
	}
	return approved, nil
}

func (d *Driver) comment(ctx context.Context, reviewID, message string) {
	if _, err := d.reviews.AddComment(ctx, reviewID, message); err != nil {
		loggerFrom(ctx, d.logger).Warn("failed to add comment", "review_id", reviewID, "error", err)
	}
}

// reviewersFor drops the review's author and moderator and duplicates from
// the project's default reviewers, keeping their order.
func reviewersFor(defaults []string, review models.Review) []string {
	seen := map[string]struct{}{
		review.Author:    {},
		review.Moderator: {},
	}
	out := make([]string, 0, len(defaults))
	for _, r := range defaults {
		if _, dup := seen[r]; dup || r == "" {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func appendedComment(commit models.Commit) string {
	return fmt.Sprintf("The Automatic Review Creator added changeset %s (%s) to this review.\n\n%s",
		commit.ChangesetID, commit.Repository, commit.Message)
}
