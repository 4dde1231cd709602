package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrec/medrec/internal/platform/db"
)

// PGStore persists ledger entries in the tenant schema's audit_log table.
// Inserts run on the request's tenant-scoped connection (or open transaction)
// when one is in context, falling back to the pool. The table itself carries
// a trigger rejecting UPDATE and DELETE, so immutability holds even against
// raw SQL (see migrations/001_audit_log.sql).
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) querier(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return s.pool
}

func (s *PGStore) Insert(ctx context.Context, entry *Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("audit: marshal details: %w", err)
	}

	const query = `
		INSERT INTO audit_log (
			id, tenant, actor_id, action, resource_type, resource_id,
			details, origin, agent, occurred_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err = s.querier(ctx).Exec(ctx, query,
		entry.ID, entry.Tenant, entry.ActorID, entry.Action,
		entry.ResourceType, entry.ResourceID,
		details, entry.Origin, entry.Agent, entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

func (s *PGStore) Query(ctx context.Context, f Filter, p Page) (*Result, error) {
	p = normalizePage(p)

	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, clause+"$"+strconv.Itoa(len(args)))
	}

	if f.Tenant != "" {
		add("tenant = ", f.Tenant)
	}
	if f.ActorID != "" {
		add("actor_id = ", f.ActorID)
	}
	if f.Action != "" {
		add("action = ", f.Action)
	}
	if f.ResourceType != "" {
		add("resource_type = ", f.ResourceType)
	}
	if f.ResourceID != nil {
		add("resource_id = ", *f.ResourceID)
	}
	if f.From != nil {
		add("occurred_at >= ", *f.From)
	}
	if f.To != nil {
		add("occurred_at <= ", *f.To)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	q := s.querier(ctx)

	var total int
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log"+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("audit: count entries: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, tenant, actor_id, action, resource_type, resource_id,
		       details, origin, agent, occurred_at
		FROM audit_log%s
		ORDER BY id DESC
		LIMIT %d OFFSET %d`, clause, p.Size, (p.Number-1)*p.Size)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var details []byte
		if err := rows.Scan(
			&e.ID, &e.Tenant, &e.ActorID, &e.Action, &e.ResourceType,
			&e.ResourceID, &details, &e.Origin, &e.Agent, &e.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("audit: unmarshal details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate entries: %w", err)
	}

	return &Result{
		Entries:   entries,
		Total:     total,
		Page:      p.Number,
		PageSize:  p.Size,
		PageCount: pageCount(total, p.Size),
	}, nil
}
