package tenancy

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrec/medrec/internal/platform/db"
)

// Provision creates the schema for a new tenant and runs all migrations
// against it. The tenant id goes through the same claim derivation as at
// request time, so a tenant that can be provisioned can always be resolved.
// If migrationsDir is empty, migrations are skipped.
func Provision(ctx context.Context, pool *pgxpool.Pool, tenantID string, migrationsDir string) (Namespace, error) {
	ns, err := FromClaim(tenantID)
	if err != nil {
		return "", fmt.Errorf("tenancy: provision: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("tenancy: acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", ns)); err != nil {
		return "", fmt.Errorf("tenancy: create schema %s: %w", ns, err)
	}

	if migrationsDir != "" {
		migrator := db.NewMigrator(pool, migrationsDir)
		if _, err := migrator.Up(ctx, string(ns)); err != nil {
			return "", fmt.Errorf("tenancy: migrate schema %s: %w", ns, err)
		}
	}

	return ns, nil
}
