package planning

import (
	"context"

	"github.com/google/uuid"
)

// PlanRepository persists case plans. Not-found is reported as
// db.ErrNotFound so callers can treat an absent plan as "no facts yet".
type PlanRepository interface {
	Create(ctx context.Context, p *CasePlan) error
	GetByCaseID(ctx context.Context, caseID uuid.UUID) (*CasePlan, error)
	Update(ctx context.Context, p *CasePlan) error
}

// ConsentRepository persists consent forms per plan.
type ConsentRepository interface {
	Create(ctx context.Context, f *ConsentForm) error
	GetByID(ctx context.Context, id uuid.UUID) (*ConsentForm, error)
	ListByPlan(ctx context.Context, casePlanID uuid.UUID) ([]*ConsentForm, error)
	Update(ctx context.Context, f *ConsentForm) error
}

// ImageRepository persists patient images per plan.
type ImageRepository interface {
	Create(ctx context.Context, img *PatientImage) error
	ListByPlan(ctx context.Context, casePlanID uuid.UUID) ([]*PatientImage, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ChecklistRepository persists the nurse pre-op checklist, one per case.
type ChecklistRepository interface {
	Upsert(ctx context.Context, c *PreOpChecklist) error
	GetByCaseID(ctx context.Context, caseID uuid.UUID) (*PreOpChecklist, error)
}
