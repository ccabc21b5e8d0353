// Package cases owns the surgical case lifecycle. A case's status only moves
// forward along a fixed chain, except for cancellation, and every move goes
// through the state machine.
package cases

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Case statuses, in chain order.
const (
	StatusDraft              = "draft"
	StatusPlanning           = "planning"
	StatusReadyForScheduling = "ready-for-scheduling"
	StatusScheduled          = "scheduled"
	StatusInPrep             = "in-prep"
	StatusInTheater          = "in-theater"
	StatusRecovery           = "recovery"
	StatusCompleted          = "completed"
	StatusCancelled          = "cancelled"
)

// Urgency levels.
const (
	UrgencyElective  = "elective"
	UrgencyUrgent    = "urgent"
	UrgencyEmergency = "emergency"
)

// SurgicalCase tracks one planned procedure for one patient. UpdatedAt is the
// optimistic concurrency token for status writes.
type SurgicalCase struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientID        uuid.UUID `db:"patient_id" json:"patient_id"`
	PrimarySurgeonID string    `db:"primary_surgeon_id" json:"primary_surgeon_id"`
	Urgency          string    `db:"urgency" json:"urgency"`
	Diagnosis        string    `db:"diagnosis" json:"diagnosis"`
	ProcedureName    string    `db:"procedure_name" json:"procedure_name"`
	Side             *string   `db:"side" json:"side,omitempty"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// chain holds the forward path. cancelled sits outside it and is handled
// separately.
var chain = []string{
	StatusDraft,
	StatusPlanning,
	StatusReadyForScheduling,
	StatusScheduled,
	StatusInPrep,
	StatusInTheater,
	StatusRecovery,
	StatusCompleted,
}

var chainIndex = func() map[string]int {
	m := make(map[string]int, len(chain))
	for i, s := range chain {
		m[s] = i
	}
	return m
}()

// ValidStatus reports whether s names a known status.
func ValidStatus(s string) bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := chainIndex[s]
	return ok
}

// ValidUrgency reports whether u is a known urgency level.
func ValidUrgency(u string) bool {
	switch u {
	case UrgencyElective, UrgencyUrgent, UrgencyEmergency:
		return true
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func Terminal(s string) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Distance returns the number of forward steps from draft to s. Cancelled
// has no distance; callers exclude it before comparing progress.
func Distance(s string) (int, bool) {
	i, ok := chainIndex[s]
	return i, ok
}

// IllegalTransitionError reports a transition request for an edge that does
// not exist in the status graph.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot move case from %s to %s", e.From, e.To)
}

// legalEdge returns nil when to is directly reachable from from: the next
// chain status, or cancellation of a non-terminal case.
func legalEdge(from, to string) error {
	if to == StatusCancelled {
		if Terminal(from) {
			return &IllegalTransitionError{From: from, To: to}
		}
		return nil
	}
	fi, fok := chainIndex[from]
	ti, tok := chainIndex[to]
	if !fok || !tok || ti != fi+1 {
		return &IllegalTransitionError{From: from, To: to}
	}
	return nil
}
