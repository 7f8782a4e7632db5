// Package database provides PostgreSQL connection and schema migration utilities.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// PoolConfig holds optional pool sizing. Zero values keep the pgx defaults.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// PoolOption configures the connection pool.
type PoolOption func(*pgxpool.Config)

// WithAfterConnect sets a callback run on each new connection (e.g. for type registration).
func WithAfterConnect(fn func(context.Context, *pgx.Conn) error) PoolOption {
	return func(c *pgxpool.Config) {
		c.AfterConnect = fn
	}
}

// WithPoolConfig applies pool sizing.
func WithPoolConfig(pc PoolConfig) PoolOption {
	return func(c *pgxpool.Config) {
		if pc.MaxConns > 0 {
			c.MaxConns = pc.MaxConns
		}

		if pc.MinConns > 0 {
			c.MinConns = pc.MinConns
		}

		if pc.MaxConnLifetime > 0 {
			c.MaxConnLifetime = pc.MaxConnLifetime
		}
	}
}

// RegisterVectorTypes registers the pgvector types (vector, halfvec, sparsevec) on a connection.
// The vector extension must exist, so run migrations before opening the pool.
func RegisterVectorTypes(ctx context.Context, conn *pgx.Conn) error {
	if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
		return fmt.Errorf("register pgvector types: %w", err)
	}

	return nil
}

// NewPostgresPool creates a new PostgreSQL connection pool with pgvector types registered.
func NewPostgresPool(ctx context.Context, databaseURL string, opts ...PoolOption) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.AfterConnect = RegisterVectorTypes

	for _, opt := range opts {
		opt(config)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL")

	return pool, nil
}
