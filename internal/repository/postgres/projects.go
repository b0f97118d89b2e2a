package postgres

import (
	"context"
	"errors"
	"fmt"

	"reviewcreator/internal/models"

	"github.com/jackc/pgx/v5"
)

const bindingColumns = `key, repository, enabled, moderator, default_reviewers, duration_days, objectives, allow_join, branch_filter`

func scanBinding(row pgx.Row) (models.ProjectBinding, error) {
	var b models.ProjectBinding
	err := row.Scan(&b.Key, &b.Repository, &b.Enabled, &b.Moderator, &b.DefaultReviewers,
		&b.DurationDays, &b.Objectives, &b.AllowJoin, &b.BranchFilter)
	return b, err
}

func (r *Repo) UpsertBinding(ctx context.Context, b models.ProjectBinding) error {
	reviewers := b.DefaultReviewers
	if reviewers == nil {
		reviewers = []string{}
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO project_bindings(`+bindingColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (key) DO UPDATE SET repository = EXCLUDED.repository, enabled = EXCLUDED.enabled,
		moderator = EXCLUDED.moderator, default_reviewers = EXCLUDED.default_reviewers,
		duration_days = EXCLUDED.duration_days, objectives = EXCLUDED.objectives,
		allow_join = EXCLUDED.allow_join, branch_filter = EXCLUDED.branch_filter`,
		b.Key, b.Repository, b.Enabled, b.Moderator, reviewers, b.DurationDays, b.Objectives, b.AllowJoin, b.BranchFilter)
	if err != nil {
		return fmt.Errorf("upsert binding: %w", err)
	}
	return nil
}

func (r *Repo) AllBindings(ctx context.Context) ([]models.ProjectBinding, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bindingColumns+` FROM project_bindings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	defer rows.Close()

	res := make([]models.ProjectBinding, 0)
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func (r *Repo) IsEnabled(ctx context.Context, projectKey string) (bool, error) {
	var enabled bool
	row := r.pool.QueryRow(ctx, `SELECT enabled FROM project_bindings WHERE key=$1`, projectKey)
	if err := row.Scan(&enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check project enabled: %w", err)
	}
	return enabled, nil
}

func (r *Repo) BranchFilter(ctx context.Context, repository string) (string, error) {
	var filter string
	row := r.pool.QueryRow(ctx, `SELECT branch_filter FROM project_bindings
		WHERE repository=$1 AND enabled AND branch_filter <> '' ORDER BY key LIMIT 1`, repository)
	if err := row.Scan(&filter); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get branch filter: %w", err)
	}
	return filter, nil
}

func (r *Repo) UpsertChangeset(ctx context.Context, c models.Commit) error {
	branches := c.Branches
	if branches == nil {
		branches = []string{}
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO changesets(repository, changeset_id, author, message, branches, committed_at)
		VALUES($1,$2,$3,$4,$5,COALESCE($6, now()))
		ON CONFLICT (repository, changeset_id) DO UPDATE SET author = EXCLUDED.author, message = EXCLUDED.message,
		branches = EXCLUDED.branches, committed_at = EXCLUDED.committed_at`,
		c.Repository, c.ChangesetID, c.Author, c.Message, branches, nullTime(c.CommittedAt))
	if err != nil {
		return fmt.Errorf("upsert changeset: %w", err)
	}
	return nil
}

func (r *Repo) GetChangeset(ctx context.Context, repository, changesetID string) (models.Commit, bool, error) {
	var c models.Commit
	row := r.pool.QueryRow(ctx, `SELECT repository, changeset_id, author, message, branches, committed_at
		FROM changesets WHERE repository=$1 AND changeset_id=$2`, repository, changesetID)
	if err := row.Scan(&c.Repository, &c.ChangesetID, &c.Author, &c.Message, &c.Branches, &c.CommittedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Commit{}, false, nil
		}
		return models.Commit{}, false, fmt.Errorf("get changeset: %w", err)
	}
	return c, true, nil
}
