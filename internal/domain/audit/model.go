package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event maps to the audit_event table. Events are append-only; nothing in
// the system updates or deletes one.
type Event struct {
	ID            uuid.UUID `db:"id" json:"id"`
	ActorID       string    `db:"actor_id" json:"actor_id"`
	TargetType    string    `db:"target_type" json:"target_type"`
	TargetID      uuid.UUID `db:"target_id" json:"target_id"`
	Action        string    `db:"action" json:"action"`
	PreviousState *string   `db:"previous_state" json:"previous_state,omitempty"`
	NewState      *string   `db:"new_state" json:"new_state,omitempty"`
	Recorded      time.Time `db:"recorded" json:"recorded"`
}

// Target types recorded by the core.
const (
	TargetCase    = "surgical-case"
	TargetBooking = "theater-booking"
)
