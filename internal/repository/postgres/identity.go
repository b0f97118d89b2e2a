package postgres

import (
	"context"
	"errors"
	"fmt"

	"reviewcreator/internal/models"

	"github.com/jackc/pgx/v5"
)

func (r *Repo) UpsertUser(ctx context.Context, u models.Identity) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO users(username, display_name, email, is_active) VALUES($1,$2,$3,$4)
		ON CONFLICT (username) DO UPDATE SET display_name = EXCLUDED.display_name, email = EXCLUDED.email, is_active = EXCLUDED.is_active`,
		u.Username, u.DisplayName, u.Email, u.Active)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (r *Repo) AddGroupMember(ctx context.Context, group, username string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_groups(group_name, username) VALUES($1,$2) ON CONFLICT DO NOTHING`, group, username)
	if err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

func (r *Repo) AddCommitterMapping(ctx context.Context, username, repository, committer string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO committer_mappings(username, repository, committer) VALUES($1,$2,$3) ON CONFLICT DO NOTHING`,
		username, repository, committer)
	if err != nil {
		return fmt.Errorf("add committer mapping: %w", err)
	}
	return nil
}

func (r *Repo) AllUsers(ctx context.Context) ([]models.Identity, error) {
	rows, err := r.pool.Query(ctx, `SELECT username, display_name, email, is_active FROM users ORDER BY created_at, username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	res := make([]models.Identity, 0)
	for rows.Next() {
		var u models.Identity
		if err := rows.Scan(&u.Username, &u.DisplayName, &u.Email, &u.Active); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r *Repo) CommitterMappings(ctx context.Context, username, repository string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT committer FROM committer_mappings WHERE username=$1 AND repository=$2 ORDER BY committer`,
		username, repository)
	if err != nil {
		return nil, fmt.Errorf("list committer mappings: %w", err)
	}
	res, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan committer mapping: %w", err)
	}
	return res, nil
}

func (r *Repo) GetUser(ctx context.Context, name string) (models.Identity, error) {
	var u models.Identity
	row := r.pool.QueryRow(ctx, `SELECT username, display_name, email, is_active FROM users WHERE username=$1`, name)
	if err := row.Scan(&u.Username, &u.DisplayName, &u.Email, &u.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return u, fmt.Errorf("%w: %s", models.ErrUnknownIdentity, name)
		}
		return u, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repo) IsUserInGroup(ctx context.Context, username, group string) (bool, error) {
	var in bool
	row := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM user_groups WHERE username=$1 AND group_name=$2)`, username, group)
	if err := row.Scan(&in); err != nil {
		return false, fmt.Errorf("check group membership: %w", err)
	}
	return in, nil
}
