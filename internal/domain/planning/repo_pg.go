package planning

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orflow/orflow/internal/platform/db"
)

type planRepoPG struct{ pool *pgxpool.Pool }

func NewPlanRepoPG(pool *pgxpool.Pool) PlanRepository {
	return &planRepoPG{pool: pool}
}

const planCols = `id, case_id, procedure_plan, risk_factors, pre_op_notes,
	planned_anesthesia, readiness_status, ready_for_surgery, created_at, updated_at`

func scanPlan(row pgx.Row) (*CasePlan, error) {
	var p CasePlan
	err := row.Scan(&p.ID, &p.CaseID, &p.ProcedurePlan, &p.RiskFactors, &p.PreOpNotes,
		&p.PlannedAnesthesia, &p.ReadinessStatus, &p.ReadyForSurgery, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.AsNotFound(err)
	}
	return &p, nil
}

func (r *planRepoPG) Create(ctx context.Context, p *CasePlan) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO case_plan (id, case_id, procedure_plan, risk_factors, pre_op_notes,
			planned_anesthesia, readiness_status, ready_for_surgery, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.CaseID, p.ProcedurePlan, p.RiskFactors, p.PreOpNotes,
		p.PlannedAnesthesia, p.ReadinessStatus, p.ReadyForSurgery, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *planRepoPG) GetByCaseID(ctx context.Context, caseID uuid.UUID) (*CasePlan, error) {
	return scanPlan(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+planCols+` FROM case_plan WHERE case_id = $1`, caseID))
}

func (r *planRepoPG) Update(ctx context.Context, p *CasePlan) error {
	p.UpdatedAt = time.Now().UTC()
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE case_plan SET procedure_plan=$2, risk_factors=$3, pre_op_notes=$4,
			planned_anesthesia=$5, readiness_status=$6, ready_for_surgery=$7, updated_at=$8
		WHERE id = $1`,
		p.ID, p.ProcedurePlan, p.RiskFactors, p.PreOpNotes,
		p.PlannedAnesthesia, p.ReadinessStatus, p.ReadyForSurgery, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

type consentRepoPG struct{ pool *pgxpool.Pool }

func NewConsentRepoPG(pool *pgxpool.Pool) ConsentRepository {
	return &consentRepoPG{pool: pool}
}

const consentCols = `id, case_plan_id, type, status, signed_at, signed_by_ip, witness_name, created_at`

func scanConsent(row pgx.Row) (*ConsentForm, error) {
	var f ConsentForm
	err := row.Scan(&f.ID, &f.CasePlanID, &f.Type, &f.Status,
		&f.SignedAt, &f.SignedByIP, &f.WitnessName, &f.CreatedAt)
	if err != nil {
		return nil, db.AsNotFound(err)
	}
	return &f, nil
}

func (r *consentRepoPG) Create(ctx context.Context, f *ConsentForm) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO consent_form (id, case_plan_id, type, status, signed_at, signed_by_ip, witness_name, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		f.ID, f.CasePlanID, f.Type, f.Status, f.SignedAt, f.SignedByIP, f.WitnessName, f.CreatedAt)
	return err
}

func (r *consentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ConsentForm, error) {
	return scanConsent(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+consentCols+` FROM consent_form WHERE id = $1`, id))
}

func (r *consentRepoPG) ListByPlan(ctx context.Context, casePlanID uuid.UUID) ([]*ConsentForm, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+consentCols+` FROM consent_form WHERE case_plan_id = $1 ORDER BY created_at`, casePlanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var forms []*ConsentForm
	for rows.Next() {
		f, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

func (r *consentRepoPG) Update(ctx context.Context, f *ConsentForm) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE consent_form SET status=$2, signed_at=$3, signed_by_ip=$4, witness_name=$5
		WHERE id = $1`,
		f.ID, f.Status, f.SignedAt, f.SignedByIP, f.WitnessName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

type imageRepoPG struct{ pool *pgxpool.Pool }

func NewImageRepoPG(pool *pgxpool.Pool) ImageRepository {
	return &imageRepoPG{pool: pool}
}

func (r *imageRepoPG) Create(ctx context.Context, img *PatientImage) error {
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	img.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patient_image (id, case_plan_id, angle, timepoint, consent_for_marketing, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		img.ID, img.CasePlanID, img.Angle, img.Timepoint, img.ConsentForMarketing, img.CreatedAt)
	return err
}

func (r *imageRepoPG) ListByPlan(ctx context.Context, casePlanID uuid.UUID) ([]*PatientImage, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, case_plan_id, angle, timepoint, consent_for_marketing, created_at
		FROM patient_image WHERE case_plan_id = $1 ORDER BY created_at`, casePlanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var images []*PatientImage
	for rows.Next() {
		var img PatientImage
		if err := rows.Scan(&img.ID, &img.CasePlanID, &img.Angle, &img.Timepoint,
			&img.ConsentForMarketing, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, &img)
	}
	return images, rows.Err()
}

func (r *imageRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patient_image WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

type checklistRepoPG struct{ pool *pgxpool.Pool }

func NewChecklistRepoPG(pool *pgxpool.Pool) ChecklistRepository {
	return &checklistRepoPG{pool: pool}
}

func (r *checklistRepoPG) Upsert(ctx context.Context, c *PreOpChecklist) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.UpdatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO pre_op_checklist (id, case_id, intake_form_complete, medical_history_complete,
			photos_complete, consent_complete, procedure_plan_complete, ready_for_surgery,
			completed_by, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (case_id) DO UPDATE SET
			intake_form_complete = EXCLUDED.intake_form_complete,
			medical_history_complete = EXCLUDED.medical_history_complete,
			photos_complete = EXCLUDED.photos_complete,
			consent_complete = EXCLUDED.consent_complete,
			procedure_plan_complete = EXCLUDED.procedure_plan_complete,
			ready_for_surgery = EXCLUDED.ready_for_surgery,
			completed_by = EXCLUDED.completed_by,
			updated_at = EXCLUDED.updated_at`,
		c.ID, c.CaseID, c.IntakeFormComplete, c.MedicalHistoryComplete,
		c.PhotosComplete, c.ConsentComplete, c.ProcedurePlanComplete, c.ReadyForSurgery,
		c.CompletedBy, c.UpdatedAt)
	return err
}

func (r *checklistRepoPG) GetByCaseID(ctx context.Context, caseID uuid.UUID) (*PreOpChecklist, error) {
	var c PreOpChecklist
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, case_id, intake_form_complete, medical_history_complete, photos_complete,
			consent_complete, procedure_plan_complete, ready_for_surgery, completed_by, updated_at
		FROM pre_op_checklist WHERE case_id = $1`, caseID).
		Scan(&c.ID, &c.CaseID, &c.IntakeFormComplete, &c.MedicalHistoryComplete, &c.PhotosComplete,
			&c.ConsentComplete, &c.ProcedurePlanComplete, &c.ReadyForSurgery, &c.CompletedBy, &c.UpdatedAt)
	if err != nil {
		return nil, db.AsNotFound(err)
	}
	return &c, nil
}
