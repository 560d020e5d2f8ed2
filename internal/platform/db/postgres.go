package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Option adjusts the pool configuration before it is opened.
type Option func(*pgxpool.Config)

// WithMaxConns caps the pool size. Zero keeps the pgx default.
func WithMaxConns(n int32) Option {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// WithTimeZone sets the session time zone so date_trunc and ::date agree with
// the application's day boundaries.
func WithTimeZone(name string) Option {
	return func(c *pgxpool.Config) {
		if name != "" {
			c.ConnConfig.RuntimeParams["timezone"] = name
		}
	}
}

// New opens a pool and pings it.
func New(ctx context.Context, dsn string, opts ...Option) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("db: parse dsn: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "barberia-backoffice"
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return pool, nil
}
