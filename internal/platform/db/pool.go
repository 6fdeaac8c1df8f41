package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Handle is the storage handle injected into every registry. It owns the
// pool and bounds each store call with QueryTimeout.
type Handle struct {
	Pool         *pgxpool.Pool
	QueryTimeout time.Duration
}

// Open connects to the database and returns a ready Handle. Callers must
// Close it on shutdown.
func Open(ctx context.Context, databaseURL string, maxConns, minConns int32, queryTimeout time.Duration) (*Handle, error) {
	pool, err := NewPool(ctx, databaseURL, maxConns, minConns)
	if err != nil {
		return nil, err
	}
	return &Handle{Pool: pool, QueryTimeout: queryTimeout}, nil
}

// Close releases every pooled connection.
func (h *Handle) Close() {
	if h != nil && h.Pool != nil {
		h.Pool.Close()
	}
}

// Bound derives a context carrying the per-call store deadline.
func (h *Handle) Bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.QueryTimeout)
}
