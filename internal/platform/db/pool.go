package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrec/medrec/internal/config"
)

func poolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pc.MaxConns = cfg.DBMaxConns
	pc.MinConns = cfg.DBMinConns

	// Request handling scopes connections to a tenant schema with SET
	// search_path. Clearing the scope on release guarantees a pooled
	// connection never carries one tenant's schema into the next caller;
	// a connection that cannot be cleared is destroyed instead of reused.
	pc.AfterRelease = func(conn *pgx.Conn) bool {
		_, err := conn.Exec(context.Background(), "RESET search_path")
		return err == nil
	}

	return pc, nil
}

// NewPool opens a connection pool sized and scoped per the service config.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
