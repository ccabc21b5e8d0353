package cases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orflow/orflow/internal/platform/db"
)

type caseRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &caseRepoPG{pool: pool}
}

const caseCols = `id, patient_id, primary_surgeon_id, urgency, diagnosis,
	procedure_name, side, status, created_at, updated_at`

func scanCase(row pgx.Row) (*SurgicalCase, error) {
	var c SurgicalCase
	err := row.Scan(&c.ID, &c.PatientID, &c.PrimarySurgeonID, &c.Urgency, &c.Diagnosis,
		&c.ProcedureName, &c.Side, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, db.AsNotFound(err)
	}
	return &c, nil
}

func (r *caseRepoPG) Create(ctx context.Context, c *SurgicalCase) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO surgical_case (id, patient_id, primary_surgeon_id, urgency, diagnosis,
			procedure_name, side, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		c.ID, c.PatientID, c.PrimarySurgeonID, c.Urgency, c.Diagnosis,
		c.ProcedureName, c.Side, c.Status, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *caseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*SurgicalCase, error) {
	return scanCase(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+caseCols+` FROM surgical_case WHERE id = $1`, id))
}

func (r *caseRepoPG) List(ctx context.Context, status string, limit, offset int) ([]*SurgicalCase, int, error) {
	var (
		total int
		err   error
	)
	if status != "" {
		err = db.Conn(ctx, r.pool).QueryRow(ctx,
			`SELECT COUNT(*) FROM surgical_case WHERE status = $1`, status).Scan(&total)
	} else {
		err = db.Conn(ctx, r.pool).QueryRow(ctx,
			`SELECT COUNT(*) FROM surgical_case`).Scan(&total)
	}
	if err != nil {
		return nil, 0, err
	}

	var rows pgx.Rows
	if status != "" {
		rows, err = db.Conn(ctx, r.pool).Query(ctx,
			`SELECT `+caseCols+` FROM surgical_case WHERE status = $3
			ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset, status)
	} else {
		rows, err = db.Conn(ctx, r.pool).Query(ctx,
			`SELECT `+caseCols+` FROM surgical_case
			ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*SurgicalCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// UpdateStatusCAS performs the compare-and-swap status write. A vanished row
// maps to ErrNotFound; a row whose (status, updated_at) moved under us maps
// to ErrConcurrentModification.
func (r *caseRepoPG) UpdateStatusCAS(ctx context.Context, id uuid.UUID, fromStatus string, expectedUpdatedAt time.Time, toStatus string) (*SurgicalCase, error) {
	updated, err := scanCase(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE surgical_case SET status = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND updated_at = $3
		RETURNING `+caseCols, id, fromStatus, expectedUpdatedAt, toStatus))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	// Distinguish a lost race from a missing case.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, db.ErrConcurrentModification
}
