package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reviewcreator/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const reviewColumns = `r.id, r.project_key, r.title, r.description, r.state, r.author, r.moderator, r.creator,
	r.allow_join, r.due_date, r.search_key, r.created_at,
	COALESCE((SELECT array_agg(rr.username ORDER BY rr.added_at, rr.username) FROM review_reviewers rr WHERE rr.review_id = r.id), '{}')`

func scanReview(row pgx.Row) (models.Review, error) {
	var rv models.Review
	var state string
	err := row.Scan(&rv.ID, &rv.ProjectKey, &rv.Title, &rv.Description, &state, &rv.Author, &rv.Moderator,
		&rv.Creator, &rv.AllowJoin, &rv.DueDate, &rv.SearchKey, &rv.CreatedAt, &rv.Reviewers)
	rv.State = models.ReviewState(state)
	return rv, err
}

func (r *Repo) CreateReview(ctx context.Context, tmpl models.ReviewTemplate, repository string, changesetIDs []string) (models.Review, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Review{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := requireChangesets(ctx, tx, repository, changesetIDs); err != nil {
		return models.Review{}, err
	}

	var seq int
	row := tx.QueryRow(ctx, `INSERT INTO review_counters(project_key, last_value) VALUES($1, 1)
		ON CONFLICT (project_key) DO UPDATE SET last_value = review_counters.last_value + 1 RETURNING last_value`,
		tmpl.ProjectKey())
	if err := row.Scan(&seq); err != nil {
		return models.Review{}, fmt.Errorf("next review number: %w", err)
	}

	creator := tmpl.Creator().Username
	if by := actingAs(ctx); by != "" {
		creator = by
	}
	id := fmt.Sprintf("%s-%d", tmpl.ProjectKey(), seq)
	_, err = tx.Exec(ctx, `INSERT INTO reviews(id, project_key, title, description, state, author, moderator, creator,
		allow_join, due_date, search_key) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		id, tmpl.ProjectKey(), tmpl.Title(), tmpl.Description(), string(models.ReviewStateDraft),
		tmpl.Author().Username, tmpl.Moderator().Username, creator, tmpl.AllowJoin(), tmpl.DueDate(), tmpl.SearchKey())
	if err != nil {
		return models.Review{}, fmt.Errorf("insert review: %w", err)
	}

	for _, cs := range changesetIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO review_changesets(review_id, repository, changeset_id) VALUES($1,$2,$3)`,
			id, repository, cs); err != nil {
			return models.Review{}, fmt.Errorf("attach changeset %s: %w", cs, err)
		}
	}

	rv, err := scanReview(tx.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews r WHERE r.id=$1`, id))
	if err != nil {
		return models.Review{}, fmt.Errorf("read created review: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Review{}, fmt.Errorf("commit transaction: %w", err)
	}
	return rv, nil
}

func (r *Repo) AddChangesets(ctx context.Context, reviewID, repository string, changesetIDs []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var state string
	if err := tx.QueryRow(ctx, `SELECT state FROM reviews WHERE id=$1 FOR UPDATE`, reviewID).Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", models.ErrReviewNotFound, reviewID)
		}
		return fmt.Errorf("lock review: %w", err)
	}
	if !models.ReviewState(state).IsOpen() {
		return fmt.Errorf("add changesets: review %s is %s", reviewID, state)
	}
	if err := requireChangesets(ctx, tx, repository, changesetIDs); err != nil {
		return err
	}

	for _, cs := range changesetIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO review_changesets(review_id, repository, changeset_id) VALUES($1,$2,$3) ON CONFLICT DO NOTHING`,
			reviewID, repository, cs); err != nil {
			return fmt.Errorf("attach changeset %s: %w", cs, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repo) AddReviewers(ctx context.Context, reviewID string, usernames []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, u := range usernames {
		if _, err := tx.Exec(ctx, `INSERT INTO review_reviewers(review_id, username) VALUES($1,$2) ON CONFLICT DO NOTHING`,
			reviewID, u); err != nil {
			return fmt.Errorf("add reviewer %s: %w", u, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repo) Transition(ctx context.Context, reviewID string, action models.ReviewAction) (models.Review, error) {
	var from, to models.ReviewState
	switch action {
	case models.ActionApprove:
		to = models.ReviewStateReview
	case models.ActionClose:
		from, to = models.ReviewStateReview, models.ReviewStateClosed
	default:
		return models.Review{}, fmt.Errorf("transition %s: unknown action %s", reviewID, action)
	}

	tag, err := r.pool.Exec(ctx, `UPDATE reviews SET state=$1 WHERE id=$2 AND (
		($3::text = '' AND state IN ('Draft', 'Approval')) OR state = $3::text)`,
		string(to), reviewID, string(from))
	if err != nil {
		return models.Review{}, fmt.Errorf("transition %s: %w", reviewID, err)
	}
	if tag.RowsAffected() == 0 {
		rv, found, err := r.GetReview(ctx, reviewID)
		if err != nil {
			return models.Review{}, err
		}
		if !found {
			return models.Review{}, fmt.Errorf("%w: %s", models.ErrReviewNotFound, reviewID)
		}
		return models.Review{}, fmt.Errorf("transition %s: action %s not allowed in state %s", reviewID, action, rv.State)
	}

	rv, _, err := r.GetReview(ctx, reviewID)
	return rv, err
}

func (r *Repo) AddComment(ctx context.Context, reviewID, message string) (models.Comment, error) {
	id := uuid.New()
	c := models.Comment{ID: id.String(), ReviewID: reviewID, Author: actingAs(ctx), Message: message}
	row := r.pool.QueryRow(ctx, `INSERT INTO review_comments(id, review_id, author, message) VALUES($1,$2,$3,$4) RETURNING created_at`,
		id, c.ReviewID, c.Author, c.Message)
	if err := row.Scan(&c.CreatedAt); err != nil {
		return models.Comment{}, fmt.Errorf("add comment: %w", err)
	}
	return c, nil
}

func (r *Repo) Comments(ctx context.Context, reviewID string) ([]models.Comment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text, review_id, author, message, created_at FROM review_comments
		WHERE review_id=$1 ORDER BY created_at, id`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	res := make([]models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.ReviewID, &c.Author, &c.Message, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *Repo) GetReview(ctx context.Context, reviewID string) (models.Review, bool, error) {
	rv, err := scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews r WHERE r.id=$1`, reviewID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Review{}, false, nil
		}
		return models.Review{}, false, fmt.Errorf("get review: %w", err)
	}
	return rv, true, nil
}

func (r *Repo) SearchByKey(ctx context.Context, key string) ([]models.Review, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reviewColumns+` FROM reviews r WHERE r.search_key=$1 ORDER BY r.created_at, r.id`, key)
	if err != nil {
		return nil, fmt.Errorf("search reviews: %w", err)
	}
	defer rows.Close()

	res := make([]models.Review, 0)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		res = append(res, rv)
	}
	return res, rows.Err()
}

func requireChangesets(ctx context.Context, tx pgx.Tx, repository string, changesetIDs []string) error {
	for _, cs := range changesetIDs {
		var exists bool
		row := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM changesets WHERE repository=$1 AND changeset_id=$2)`, repository, cs)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("check changeset: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %s:%s", models.ErrChangesetNotFound, repository, cs)
		}
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
