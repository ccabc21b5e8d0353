// Package readiness computes whether a surgical case is ready to be
// scheduled. The verdict is a pure function of five facts; both the
// dashboard query and the lifecycle transition guard call the same
// implementation.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/orflow/orflow/internal/domain/planning"
	"github.com/orflow/orflow/internal/platform/db"
)

// Labels for missing items, stable because UIs key remediation hints on them.
const (
	ItemProcedurePlan  = "procedure-plan"
	ItemRiskFactors    = "risk-factors"
	ItemSignedConsent  = "signed-consent"
	ItemPreOpPhoto     = "pre-op-photo"
	ItemNurseChecklist = "nurse-checklist"
)

// Facts is the closed snapshot of the five readiness signals. Collaborator
// records are normalized into it at the boundary; scoring never inspects raw
// records.
type Facts struct {
	HasProcedurePlan   bool
	HasRiskFactors     bool
	HasSignedConsent   bool
	HasPreOpPhoto      bool
	NursePreOpComplete bool
}

// Report is the evaluator verdict.
type Report struct {
	Percentage   int      `json:"percentage"`
	MissingItems []string `json:"missing_items"`
	IsReady      bool     `json:"is_ready"`
}

// StatusLabel is the short verdict string cached on the case plan for
// dashboard display.
func (r Report) StatusLabel() string {
	if r.IsReady {
		return "ready"
	}
	return fmt.Sprintf("incomplete-%d", r.Percentage)
}

// ValidationError is raised when a guarded transition runs against an
// incomplete case. It carries the detail a caller needs to render
// remediation hints.
type ValidationError struct {
	MissingItems   []string
	CompletedCount int
	TotalRequired  int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("case not ready for scheduling: %d/%d items complete, missing %s",
		e.CompletedCount, e.TotalRequired, strings.Join(e.MissingItems, ", "))
}

// Score computes the verdict from a fact snapshot. Deterministic, no side
// effects, equal weighting across the five items.
func Score(f Facts) Report {
	items := []struct {
		done  bool
		label string
	}{
		{f.HasProcedurePlan, ItemProcedurePlan},
		{f.HasRiskFactors, ItemRiskFactors},
		{f.HasSignedConsent, ItemSignedConsent},
		{f.HasPreOpPhoto, ItemPreOpPhoto},
		{f.NursePreOpComplete, ItemNurseChecklist},
	}
	completed := 0
	missing := []string{}
	for _, it := range items {
		if it.done {
			completed++
		} else {
			missing = append(missing, it.label)
		}
	}
	pct := int(math.Round(100 * float64(completed) / float64(len(items))))
	return Report{
		Percentage:   pct,
		MissingItems: missing,
		IsReady:      pct == 100,
	}
}

// Evaluator gathers facts from the planning stores and scores them. Safe to
// call repeatedly; it never writes.
type Evaluator struct {
	plans      planning.PlanRepository
	consents   planning.ConsentRepository
	images     planning.ImageRepository
	checklists planning.ChecklistRepository
}

func NewEvaluator(plans planning.PlanRepository, consents planning.ConsentRepository, images planning.ImageRepository, checklists planning.ChecklistRepository) *Evaluator {
	return &Evaluator{plans: plans, consents: consents, images: images, checklists: checklists}
}

// Gather normalizes collaborator records into a fact snapshot. A collaborator
// returning nothing means the fact is false, never an error.
func (e *Evaluator) Gather(ctx context.Context, caseID uuid.UUID) (Facts, error) {
	var facts Facts

	plan, err := e.plans.GetByCaseID(ctx, caseID)
	switch {
	case err == nil:
		facts.HasProcedurePlan = strings.TrimSpace(plan.ProcedurePlan) != ""
		facts.HasRiskFactors = strings.TrimSpace(plan.RiskFactors) != ""
	case errors.Is(err, db.ErrNotFound):
		// no plan yet, both plan facts stay false
	default:
		return Facts{}, err
	}

	if plan != nil {
		forms, err := e.consents.ListByPlan(ctx, plan.ID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return Facts{}, err
		}
		for _, f := range forms {
			if f.Status == planning.ConsentSigned {
				facts.HasSignedConsent = true
				break
			}
		}

		images, err := e.images.ListByPlan(ctx, plan.ID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return Facts{}, err
		}
		for _, img := range images {
			if img.Timepoint == planning.TimepointPreOp {
				facts.HasPreOpPhoto = true
				break
			}
		}
	}

	checklist, err := e.checklists.GetByCaseID(ctx, caseID)
	switch {
	case err == nil:
		facts.NursePreOpComplete = checklist.ReadyForSurgery
	case errors.Is(err, db.ErrNotFound):
		// no checklist yet
	default:
		return Facts{}, err
	}

	return facts, nil
}

// Evaluate produces the readiness report for a case.
func (e *Evaluator) Evaluate(ctx context.Context, caseID uuid.UUID) (Report, error) {
	facts, err := e.Gather(ctx, caseID)
	if err != nil {
		return Report{}, err
	}
	return Score(facts), nil
}

// Validate is the guard form of Evaluate. It returns a ValidationError when
// the case is not ready, carrying the missing-item detail.
func (e *Evaluator) Validate(ctx context.Context, caseID uuid.UUID) error {
	report, err := e.Evaluate(ctx, caseID)
	if err != nil {
		return err
	}
	if !report.IsReady {
		return &ValidationError{
			MissingItems:   report.MissingItems,
			CompletedCount: 5 - len(report.MissingItems),
			TotalRequired:  5,
		}
	}
	return nil
}
