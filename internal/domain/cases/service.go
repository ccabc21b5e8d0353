package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orflow/orflow/internal/domain/audit"
	"github.com/orflow/orflow/internal/domain/theater"
	"github.com/orflow/orflow/internal/platform/db"
)

// ErrNoActiveBooking rejects entry into scheduled when the case holds no
// non-cancelled theater booking.
var ErrNoActiveBooking = errors.New("case has no active theater booking")

// ReadinessGuard validates a case before it may enter ready-for-scheduling.
// It must be side-effect free so the state machine can re-run it inside the
// transition transaction.
type ReadinessGuard interface {
	Validate(ctx context.Context, caseID uuid.UUID) error
}

// BookingGate is the slice of the theater scheduler the state machine needs:
// checking for an active booking when entering scheduled, and cancelling it
// atomically when the case is cancelled.
type BookingGate interface {
	ActiveForCase(ctx context.Context, caseID uuid.UUID) (*theater.Booking, error)
	CancelActiveForCase(ctx context.Context, caseID uuid.UUID) (*theater.Booking, error)
}

// StateMachine performs guarded case transitions. All writes go through the
// compare-and-swap repository path inside one transaction; audit events are
// recorded after commit and never roll a transition back.
type StateMachine struct {
	cases    Repository
	guard    ReadinessGuard
	bookings BookingGate
	recorder audit.Recorder
	tx       db.TxRunner
	logger   zerolog.Logger
}

func NewStateMachine(cases Repository, guard ReadinessGuard, bookings BookingGate, recorder audit.Recorder, tx db.TxRunner, logger zerolog.Logger) *StateMachine {
	return &StateMachine{
		cases:    cases,
		guard:    guard,
		bookings: bookings,
		recorder: recorder,
		tx:       tx,
		logger:   logger,
	}
}

// CreateCase registers a new case in draft.
func (m *StateMachine) CreateCase(ctx context.Context, c *SurgicalCase, actorID string) error {
	if c.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if c.PrimarySurgeonID == "" {
		return fmt.Errorf("primary_surgeon_id is required")
	}
	if c.ProcedureName == "" {
		return fmt.Errorf("procedure_name is required")
	}
	if c.Urgency == "" {
		c.Urgency = UrgencyElective
	}
	if !ValidUrgency(c.Urgency) {
		return fmt.Errorf("unknown urgency %q", c.Urgency)
	}
	c.Status = StatusDraft
	if err := m.cases.Create(ctx, c); err != nil {
		return err
	}
	m.record(ctx, actorID, c.ID, "case-created", "", StatusDraft)
	return nil
}

func (m *StateMachine) GetCase(ctx context.Context, id uuid.UUID) (*SurgicalCase, error) {
	return m.cases.GetByID(ctx, id)
}

func (m *StateMachine) ListCases(ctx context.Context, status string, limit, offset int) ([]*SurgicalCase, int, error) {
	if status != "" && !ValidStatus(status) {
		return nil, 0, fmt.Errorf("unknown status %q", status)
	}
	return m.cases.List(ctx, status, limit, offset)
}

// Transition moves a case to target. Re-requesting the current status is a
// no-op success and emits no audit event. Rejections are pure: on any error
// the case is left exactly as found.
func (m *StateMachine) Transition(ctx context.Context, caseID uuid.UUID, target, actorID string) (*SurgicalCase, error) {
	if !ValidStatus(target) {
		return nil, fmt.Errorf("unknown status %q", target)
	}

	c, err := m.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status == target {
		return c, nil
	}
	if err := legalEdge(c.Status, target); err != nil {
		return nil, err
	}

	var updated *SurgicalCase
	var cancelledBooking *theater.Booking
	err = m.tx(ctx, func(ctx context.Context) error {
		// Guards run inside the transaction so the verdict cannot go stale
		// between check and write.
		switch target {
		case StatusReadyForScheduling:
			if err := m.guard.Validate(ctx, caseID); err != nil {
				return err
			}
		case StatusScheduled:
			if _, err := m.bookings.ActiveForCase(ctx, caseID); err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return ErrNoActiveBooking
				}
				return err
			}
		case StatusCancelled:
			b, err := m.bookings.CancelActiveForCase(ctx, caseID)
			if err != nil {
				return err
			}
			cancelledBooking = b
		}

		updated, err = m.cases.UpdateStatusCAS(ctx, caseID, c.Status, c.UpdatedAt, target)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.record(ctx, actorID, caseID, "status-changed", c.Status, target)
	if cancelledBooking != nil {
		m.recordBookingCancelled(ctx, actorID, cancelledBooking)
	}
	return updated, nil
}

// BeginPlanning is the implicit draft-to-planning move triggered by the
// first plan write. It runs inside the caller's transaction; a case already
// in planning is left alone.
func (m *StateMachine) BeginPlanning(ctx context.Context, caseID uuid.UUID, actorID string) error {
	c, err := m.cases.GetByID(ctx, caseID)
	if err != nil {
		return err
	}
	if c.Status == StatusPlanning {
		return nil
	}
	if err := legalEdge(c.Status, StatusPlanning); err != nil {
		return err
	}
	if _, err := m.cases.UpdateStatusCAS(ctx, caseID, c.Status, c.UpdatedAt, StatusPlanning); err != nil {
		return err
	}
	m.record(ctx, actorID, caseID, "status-changed", c.Status, StatusPlanning)
	return nil
}

// recordBookingCancelled audits the booking cancelled as part of a case
// cancellation. The gate returns the booking in its pre-cancellation state.
func (m *StateMachine) recordBookingCancelled(ctx context.Context, actorID string, b *theater.Booking) {
	prev := b.Status
	next := theater.BookingCancelled
	e := audit.Event{
		ActorID:       actorID,
		TargetType:    audit.TargetBooking,
		TargetID:      b.ID,
		Action:        "booking-cancelled",
		PreviousState: &prev,
		NewState:      &next,
		Recorded:      time.Now().UTC(),
	}
	if err := m.recorder.Record(ctx, e); err != nil {
		m.logger.Error().Err(err).
			Str("booking_id", b.ID.String()).
			Msg("booking audit failed")
	}
}

func (m *StateMachine) record(ctx context.Context, actorID string, caseID uuid.UUID, action, prev, next string) {
	e := audit.Event{
		ActorID:    actorID,
		TargetType: audit.TargetCase,
		TargetID:   caseID,
		Action:     action,
		Recorded:   time.Now().UTC(),
	}
	if prev != "" {
		e.PreviousState = &prev
	}
	if next != "" {
		e.NewState = &next
	}
	if err := m.recorder.Record(ctx, e); err != nil {
		m.logger.Error().Err(err).
			Str("case_id", caseID.String()).
			Str("action", action).
			Msg("case audit failed")
	}
}
