package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func (r *Repo) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	row := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key)
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get setting: %w", err)
	}
	return v, true, nil
}

func (r *Repo) Put(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO settings(key, value) VALUES($1,$2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}
