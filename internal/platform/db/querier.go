package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const querierKey contextKey = "db_querier"

// Querier is the subset of pgx operations shared by *pgxpool.Pool,
// *pgxpool.Conn, and pgx.Tx. Request handling stores the tenant-scoped
// connection (or an open transaction) under this interface so that repository
// code and the audit ledger run against the same unit of work.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithQuerier returns a context carrying the given querier.
func WithQuerier(ctx context.Context, q Querier) context.Context {
	return context.WithValue(ctx, querierKey, q)
}

// QuerierFromContext retrieves the request's querier, or nil when the request
// has no tenant-scoped connection (public routes, background jobs).
func QuerierFromContext(ctx context.Context) Querier {
	q, _ := ctx.Value(querierKey).(Querier)
	return q
}

// beginner matches the Begin method on both *pgxpool.Conn and *pgxpool.Pool.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn inside a transaction on the request's tenant-scoped
// connection. The transaction replaces the connection in the context passed
// to fn, so every write fn performs — resource mutations and transactional
// audit entries alike — commits or rolls back as one unit.
func WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	q := QuerierFromContext(ctx)
	b, ok := q.(beginner)
	if !ok {
		return fmt.Errorf("db: no transactable connection in context")
	}

	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(WithQuerier(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit transaction: %w", err)
	}
	return nil
}

// PoolQuerier adapts a pool for callers that need a Querier outside any
// request scope, such as best-effort audit writes.
func PoolQuerier(pool *pgxpool.Pool) Querier {
	return pool
}
