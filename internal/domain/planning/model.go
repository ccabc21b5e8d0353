// Package planning holds the surgeon's case plan and its supporting
// artifacts: consent forms, patient images, and the nurse pre-op checklist.
// These records feed the readiness facts that gate scheduling.
package planning

import (
	"time"

	"github.com/google/uuid"
)

// CasePlan is the surgeon's documented plan for a case. At most one exists
// per case, created lazily when planning begins.
type CasePlan struct {
	ID                uuid.UUID `db:"id" json:"id"`
	CaseID            uuid.UUID `db:"case_id" json:"case_id"`
	ProcedurePlan     string    `db:"procedure_plan" json:"procedure_plan"`
	RiskFactors       string    `db:"risk_factors" json:"risk_factors"`
	PreOpNotes        string    `db:"pre_op_notes" json:"pre_op_notes"`
	PlannedAnesthesia string    `db:"planned_anesthesia" json:"planned_anesthesia"`
	ReadinessStatus   string    `db:"readiness_status" json:"readiness_status"`
	ReadyForSurgery   bool      `db:"ready_for_surgery" json:"ready_for_surgery"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Consent types. One non-revoked form may exist per type per plan.
const (
	ConsentGeneralProcedure = "general-procedure"
	ConsentAnesthesia       = "anesthesia"
	ConsentPhotography      = "photography"
	ConsentSpecialProcedure = "special-procedure"
	ConsentBloodTransfusion = "blood-transfusion"
)

// Consent statuses.
const (
	ConsentPending = "pending-signature"
	ConsentSigned  = "signed"
	ConsentRevoked = "revoked"
)

// ConsentForm records one consent document attached to a case plan.
type ConsentForm struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	CasePlanID  uuid.UUID  `db:"case_plan_id" json:"case_plan_id"`
	Type        string     `db:"type" json:"type"`
	Status      string     `db:"status" json:"status"`
	SignedAt    *time.Time `db:"signed_at" json:"signed_at,omitempty"`
	SignedByIP  string     `db:"signed_by_ip" json:"signed_by_ip,omitempty"`
	WitnessName string     `db:"witness_name" json:"witness_name,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Image timepoints.
const (
	TimepointPreOp   = "pre-op"
	TimepointIntraOp = "intra-op"
	TimepointPostOp  = "post-op"
)

// PatientImage is a clinical photograph attached to a case plan.
type PatientImage struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	CasePlanID          uuid.UUID `db:"case_plan_id" json:"case_plan_id"`
	Angle               string    `db:"angle" json:"angle"`
	Timepoint           string    `db:"timepoint" json:"timepoint"`
	ConsentForMarketing bool      `db:"consent_for_marketing" json:"consent_for_marketing"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// PreOpChecklist is the nurse-owned readiness signal, keyed by case rather
// than by plan so nursing review can start before a plan exists.
type PreOpChecklist struct {
	ID                     uuid.UUID `db:"id" json:"id"`
	CaseID                 uuid.UUID `db:"case_id" json:"case_id"`
	IntakeFormComplete     bool      `db:"intake_form_complete" json:"intake_form_complete"`
	MedicalHistoryComplete bool      `db:"medical_history_complete" json:"medical_history_complete"`
	PhotosComplete         bool      `db:"photos_complete" json:"photos_complete"`
	ConsentComplete        bool      `db:"consent_complete" json:"consent_complete"`
	ProcedurePlanComplete  bool      `db:"procedure_plan_complete" json:"procedure_plan_complete"`
	ReadyForSurgery        bool      `db:"ready_for_surgery" json:"ready_for_surgery"`
	CompletedBy            string    `db:"completed_by" json:"completed_by"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// ValidConsentType reports whether t is one of the known consent types.
func ValidConsentType(t string) bool {
	switch t {
	case ConsentGeneralProcedure, ConsentAnesthesia, ConsentPhotography,
		ConsentSpecialProcedure, ConsentBloodTransfusion:
		return true
	}
	return false
}

// ValidTimepoint reports whether tp is a known image timepoint.
func ValidTimepoint(tp string) bool {
	switch tp {
	case TimepointPreOp, TimepointIntraOp, TimepointPostOp:
		return true
	}
	return false
}
