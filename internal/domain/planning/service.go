package planning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orflow/orflow/internal/platform/db"
)

// CasePromoter moves a case from draft into planning when the first plan is
// written. Implemented by the case lifecycle state machine; kept as a narrow
// interface here so the plan service stays decoupled from it.
type CasePromoter interface {
	BeginPlanning(ctx context.Context, caseID uuid.UUID, actorID string) error
}

// ErrConsentActive is returned when creating a consent of a type that already
// has a non-revoked form. Revocation must precede recreation.
var ErrConsentActive = errors.New("an active consent of this type already exists")

// Service provides CRUD and lifecycle rules for plans, consents, images and
// the nurse checklist.
type Service struct {
	plans      PlanRepository
	consents   ConsentRepository
	images     ImageRepository
	checklists ChecklistRepository
	promoter   CasePromoter
	tx         db.TxRunner
}

func NewService(plans PlanRepository, consents ConsentRepository, images ImageRepository, checklists ChecklistRepository, promoter CasePromoter, tx db.TxRunner) *Service {
	return &Service{
		plans:      plans,
		consents:   consents,
		images:     images,
		checklists: checklists,
		promoter:   promoter,
		tx:         tx,
	}
}

// CreatePlan writes the first plan for a case and promotes a draft case into
// planning in the same transaction.
func (s *Service) CreatePlan(ctx context.Context, p *CasePlan, actorID string) error {
	if p.CaseID == uuid.Nil {
		return fmt.Errorf("case_id is required")
	}
	if _, err := s.plans.GetByCaseID(ctx, p.CaseID); err == nil {
		return fmt.Errorf("case already has a plan")
	} else if !errors.Is(err, db.ErrNotFound) {
		return err
	}
	return s.tx(ctx, func(ctx context.Context) error {
		if err := s.plans.Create(ctx, p); err != nil {
			return err
		}
		return s.promoter.BeginPlanning(ctx, p.CaseID, actorID)
	})
}

func (s *Service) GetPlan(ctx context.Context, caseID uuid.UUID) (*CasePlan, error) {
	return s.plans.GetByCaseID(ctx, caseID)
}

// UpdatePlan replaces the surgeon-owned fields of an existing plan.
func (s *Service) UpdatePlan(ctx context.Context, caseID uuid.UUID, in *CasePlan) (*CasePlan, error) {
	p, err := s.plans.GetByCaseID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	p.ProcedurePlan = in.ProcedurePlan
	p.RiskFactors = in.RiskFactors
	p.PreOpNotes = in.PreOpNotes
	p.PlannedAnesthesia = in.PlannedAnesthesia
	if err := s.plans.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateNurseNotes is the narrow nurse-editable surface of a plan. Only the
// pre-op notes may change through it.
func (s *Service) UpdateNurseNotes(ctx context.Context, caseID uuid.UUID, preOpNotes string) (*CasePlan, error) {
	p, err := s.plans.GetByCaseID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	p.PreOpNotes = preOpNotes
	if err := s.plans.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CacheReadinessVerdict stores the latest evaluator verdict on the plan for
// display. The transition guard never reads this cache.
func (s *Service) CacheReadinessVerdict(ctx context.Context, caseID uuid.UUID, status string, ready bool) error {
	p, err := s.plans.GetByCaseID(ctx, caseID)
	if err != nil {
		return err
	}
	p.ReadinessStatus = status
	p.ReadyForSurgery = ready
	return s.plans.Update(ctx, p)
}

// CreateConsent registers a new consent form in pending-signature status.
// Rejects when a non-revoked form of the same type already exists.
func (s *Service) CreateConsent(ctx context.Context, f *ConsentForm) error {
	if f.CasePlanID == uuid.Nil {
		return fmt.Errorf("case_plan_id is required")
	}
	if !ValidConsentType(f.Type) {
		return fmt.Errorf("unknown consent type %q", f.Type)
	}
	existing, err := s.consents.ListByPlan(ctx, f.CasePlanID)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Type == f.Type && e.Status != ConsentRevoked {
			return ErrConsentActive
		}
	}
	f.Status = ConsentPending
	return s.consents.Create(ctx, f)
}

// SignConsent marks a pending consent as signed, recording where and before
// whom it was signed.
func (s *Service) SignConsent(ctx context.Context, id uuid.UUID, signedByIP, witnessName string) (*ConsentForm, error) {
	f, err := s.consents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status != ConsentPending {
		return nil, fmt.Errorf("consent is %s, only pending forms can be signed", f.Status)
	}
	now := time.Now().UTC()
	f.Status = ConsentSigned
	f.SignedAt = &now
	f.SignedByIP = signedByIP
	f.WitnessName = witnessName
	if err := s.consents.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// RevokeConsent withdraws a consent form, freeing its type for recreation.
func (s *Service) RevokeConsent(ctx context.Context, id uuid.UUID) (*ConsentForm, error) {
	f, err := s.consents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status == ConsentRevoked {
		return f, nil
	}
	f.Status = ConsentRevoked
	if err := s.consents.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) ListConsents(ctx context.Context, casePlanID uuid.UUID) ([]*ConsentForm, error) {
	return s.consents.ListByPlan(ctx, casePlanID)
}

// RegisterImage attaches a photograph to a plan.
func (s *Service) RegisterImage(ctx context.Context, img *PatientImage) error {
	if img.CasePlanID == uuid.Nil {
		return fmt.Errorf("case_plan_id is required")
	}
	if !ValidTimepoint(img.Timepoint) {
		return fmt.Errorf("unknown timepoint %q", img.Timepoint)
	}
	return s.images.Create(ctx, img)
}

func (s *Service) ListImages(ctx context.Context, casePlanID uuid.UUID) ([]*PatientImage, error) {
	return s.images.ListByPlan(ctx, casePlanID)
}

func (s *Service) DeleteImage(ctx context.Context, id uuid.UUID) error {
	return s.images.Delete(ctx, id)
}

// SaveChecklist upserts the nurse pre-op checklist for a case.
func (s *Service) SaveChecklist(ctx context.Context, c *PreOpChecklist, actorID string) error {
	if c.CaseID == uuid.Nil {
		return fmt.Errorf("case_id is required")
	}
	c.CompletedBy = actorID
	return s.checklists.Upsert(ctx, c)
}

func (s *Service) GetChecklist(ctx context.Context, caseID uuid.UUID) (*PreOpChecklist, error) {
	return s.checklists.GetByCaseID(ctx, caseID)
}
