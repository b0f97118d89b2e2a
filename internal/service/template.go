package service

import (
	"context"
	"log/slog"
	"time"

	"reviewcreator/internal/models"
	"reviewcreator/internal/repository"
	"reviewcreator/internal/workday"
)

type TemplateBuilder struct {
	dir     repository.IdentityDirectory
	nowFunc func() time.Time
	logger  *slog.Logger
}

func NewTemplateBuilder(dir repository.IdentityDirectory, nowFunc func() time.Time, logger *slog.Logger) *TemplateBuilder {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateBuilder{dir: dir, nowFunc: nowFunc, logger: logger}
}

// Build assembles the parameters of a new review for commit. It reports false
// when the project's moderator cannot be resolved to a known identity.
func (b *TemplateBuilder) Build(ctx context.Context, commit models.Commit, binding models.ProjectBinding,
	ids models.IdentityMap, searchKey string) (models.ReviewTemplate, bool) {

	log := loggerFrom(ctx, b.logger)

	if binding.Moderator == "" {
		log.Error("no default moderator configured", "project", binding.Key)
		return models.ReviewTemplate{}, false
	}
	moderator, err := b.dir.GetUser(ctx, binding.Moderator)
	if err != nil {
		log.Error("cannot resolve project moderator", "project", binding.Key, "moderator", binding.Moderator, "error", err)
		return models.ReviewTemplate{}, false
	}

	creator, ok := ids.Lookup(commit.Author)
	if !ok {
		log.Warn("committer not mapped, using moderator as author", "committer", commit.Author, "moderator", moderator.Username)
		creator = moderator
	}

	description := binding.Objectives
	if description == "" {
		description = commit.Message
	}

	var due *time.Time
	if binding.DurationDays != nil {
		d, err := workday.AddWorkingDays(b.nowFunc(), *binding.DurationDays)
		if err != nil {
			log.Warn("ignoring invalid review duration", "project", binding.Key, "days", *binding.DurationDays, "error", err)
		} else {
			due = &d
		}
	}

	return models.NewReviewTemplate(models.ReviewTemplateParams{
		ProjectKey:  binding.Key,
		Title:       FirstNonEmptyLine(commit.Message),
		Description: description,
		Author:      creator,
		Moderator:   moderator,
		Creator:     creator,
		AllowJoin:   binding.AllowJoin,
		DueDate:     due,
		SearchKey:   searchKey,
	}), true
}
