package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reviewcreator/internal/actor"
	"reviewcreator/internal/migration"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Options struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
	// Migrate applies pending migrations in OnStart.
	Migrate bool
}

type Repo struct {
	pool   *pgxpool.Pool
	opts   Options
	logger *slog.Logger
}

// New returns a backend that connects in OnStart.
func New(opts Options, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{opts: opts, logger: logger}
}

// NewFromPool wraps an already connected pool. OnStop will not close it.
func NewFromPool(pool *pgxpool.Pool, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{pool: pool, logger: logger}
}

func (r *Repo) OnStart(ctx context.Context) error {
	if r.pool != nil {
		return nil
	}

	poolCfg, err := pgxpool.ParseConfig(r.opts.DSN)
	if err != nil {
		return fmt.Errorf("parse pool config: %w", err)
	}
	if r.opts.MaxConns > 0 {
		poolCfg.MaxConns = r.opts.MaxConns
	}
	if r.opts.MinConns > 0 {
		poolCfg.MinConns = r.opts.MinConns
	}

	connectCtx := ctx
	if r.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, r.opts.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return fmt.Errorf("ping pool: %w", err)
	}

	if r.opts.Migrate {
		if err := migration.Run(ctx, pool, r.logger); err != nil {
			pool.Close()
			return err
		}
	}

	r.pool = pool
	r.logger.Info("postgres ready", "max_conns", poolCfg.MaxConns)
	return nil
}

func (r *Repo) OnStop(context.Context) error {
	if r.pool != nil && r.opts.DSN != "" {
		r.pool.Close()
	}
	return nil
}

func (r *Repo) Pool() *pgxpool.Pool { return r.pool }

func actingAs(ctx context.Context) string {
	name, _ := actor.FromContext(ctx)
	return name
}
