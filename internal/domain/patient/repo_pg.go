package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrec/medrec/internal/platform/db"
)

var ErrNotFound = errors.New("patient: not found")

// PGRepository reads and writes the patient table through the request's
// tenant-scoped connection, so every query lands in the resolved tenant's
// schema.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) querier(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

func (r *PGRepository) Create(ctx context.Context, p *Patient) error {
	const query = `
		INSERT INTO patient (id, mrn, given_name, family_name, birth_date, ssn_encrypted)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`

	err := r.querier(ctx).QueryRow(ctx, query,
		p.ID, p.MRN, p.GivenName, p.FamilyName, p.BirthDate, p.SSNEncrypted,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("patient: create: %w", err)
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	const query = `
		SELECT id, mrn, given_name, family_name, birth_date, ssn_encrypted, created_at, updated_at
		FROM patient WHERE id = $1`

	p := &Patient{}
	err := r.querier(ctx).QueryRow(ctx, query, id).Scan(
		&p.ID, &p.MRN, &p.GivenName, &p.FamilyName, &p.BirthDate,
		&p.SSNEncrypted, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patient: get %s: %w", id, err)
	}
	return p, nil
}

func (r *PGRepository) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	q := r.querier(ctx)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("patient: count: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, mrn, given_name, family_name, birth_date, ssn_encrypted, created_at, updated_at
		FROM patient ORDER BY family_name, given_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("patient: list: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p := &Patient{}
		if err := rows.Scan(
			&p.ID, &p.MRN, &p.GivenName, &p.FamilyName, &p.BirthDate,
			&p.SSNEncrypted, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("patient: scan: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *PGRepository) Update(ctx context.Context, p *Patient) error {
	const query = `
		UPDATE patient
		SET mrn = $2, given_name = $3, family_name = $4, birth_date = $5,
		    ssn_encrypted = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.querier(ctx).QueryRow(ctx, query,
		p.ID, p.MRN, p.GivenName, p.FamilyName, p.BirthDate, p.SSNEncrypted,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("patient: update %s: %w", p.ID, err)
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.querier(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("patient: delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
