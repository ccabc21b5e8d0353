package theater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orflow/orflow/internal/domain/audit"
	"github.com/orflow/orflow/internal/platform/db"
)

// Scheduler allocates theater time to cases. Booking runs in a single
// transaction that starts by locking the theater row, so two writers for the
// same theater never run their overlap checks concurrently.
type Scheduler struct {
	theaters TheaterRepository
	bookings BookingRepository
	recorder audit.Recorder
	tx       db.TxRunner
	logger   zerolog.Logger
}

func NewScheduler(theaters TheaterRepository, bookings BookingRepository, recorder audit.Recorder, tx db.TxRunner, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		theaters: theaters,
		bookings: bookings,
		recorder: recorder,
		tx:       tx,
		logger:   logger,
	}
}

// Book reserves [start, end) on a theater for a case. A case that already
// holds an active booking is rebooked: the old booking is cancelled and the
// new one created in the same transaction.
func (s *Scheduler) Book(ctx context.Context, theaterID, caseID uuid.UUID, start, end time.Time, actorID string) (*Booking, error) {
	if !end.After(start) {
		return nil, ErrInvalidInterval
	}

	booking := &Booking{
		TheaterID: theaterID,
		CaseID:    caseID,
		Status:    BookingProvisional,
		StartTime: start,
		EndTime:   end,
	}
	var replaced *Booking

	err := s.tx(ctx, func(ctx context.Context) error {
		// The theater row lock serializes concurrent Book calls for this
		// theater. Without it two writers could each scan an empty schedule
		// and both insert overlapping intervals.
		th, err := s.theaters.GetByIDLocked(ctx, theaterID)
		if err != nil {
			return err
		}
		if !th.IsActive {
			return fmt.Errorf("theater %s is not active", th.Name)
		}

		active, err := s.bookings.ActiveForTheater(ctx, theaterID)
		if err != nil {
			return err
		}

		existing, err := s.bookings.ActiveForCase(ctx, caseID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}

		for _, b := range active {
			if existing != nil && b.ID == existing.ID {
				continue
			}
			if b.Overlaps(start, end) {
				return &ConflictError{ConflictingBookingID: b.ID}
			}
		}

		if existing != nil {
			if err := s.bookings.SetStatus(ctx, existing.ID, BookingCancelled); err != nil {
				return err
			}
			replaced = existing
		}
		return s.bookings.Create(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	if replaced != nil {
		s.record(ctx, actorID, replaced.ID, "booking-cancelled", replaced.Status, BookingCancelled)
	}
	s.record(ctx, actorID, booking.ID, "booking-created", "", BookingProvisional)
	return booking, nil
}

// Confirm moves a provisional booking to confirmed.
func (s *Scheduler) Confirm(ctx context.Context, bookingID uuid.UUID, actorID string) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == BookingConfirmed {
		return b, nil
	}
	if b.Status != BookingProvisional {
		return nil, fmt.Errorf("booking is %s, only provisional bookings can be confirmed", b.Status)
	}
	if err := s.bookings.SetStatus(ctx, bookingID, BookingConfirmed); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, bookingID, "booking-confirmed", BookingProvisional, BookingConfirmed)
	b.Status = BookingConfirmed
	return b, nil
}

// Cancel releases a booking's slot. Cancelling an already cancelled booking
// is a no-op success.
func (s *Scheduler) Cancel(ctx context.Context, bookingID uuid.UUID, actorID string) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == BookingCancelled {
		return b, nil
	}
	prev := b.Status
	if err := s.bookings.SetStatus(ctx, bookingID, BookingCancelled); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, bookingID, "booking-cancelled", prev, BookingCancelled)
	b.Status = BookingCancelled
	return b, nil
}

// CancelActiveForCase cancels the case's active booking if one exists. It is
// called by the case lifecycle inside its own transaction, so it writes
// through the repository without opening a new one and without emitting
// audit itself; the lifecycle records both events after its commit. The
// returned booking keeps its pre-cancellation status so the caller can audit
// the change.
func (s *Scheduler) CancelActiveForCase(ctx context.Context, caseID uuid.UUID) (*Booking, error) {
	b, err := s.bookings.ActiveForCase(ctx, caseID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.bookings.SetStatus(ctx, b.ID, BookingCancelled); err != nil {
		return nil, err
	}
	return b, nil
}

// ActiveForCase returns the case's current non-cancelled booking, or
// db.ErrNotFound.
func (s *Scheduler) ActiveForCase(ctx context.Context, caseID uuid.UUID) (*Booking, error) {
	return s.bookings.ActiveForCase(ctx, caseID)
}

// ListRelevant returns the theater's bookings still worth showing on a
// dashboard at asOf: active bookings whose end plus the grace window has not
// passed. asOf is always explicit so the filter stays testable.
func (s *Scheduler) ListRelevant(ctx context.Context, theaterID uuid.UUID, asOf time.Time, graceMinutes int) ([]*Booking, error) {
	all, err := s.bookings.ListForTheater(ctx, theaterID)
	if err != nil {
		return nil, err
	}
	relevant := []*Booking{}
	for _, b := range all {
		if b.Active() && Relevant(b, asOf, graceMinutes) {
			relevant = append(relevant, b)
		}
	}
	return relevant, nil
}

// CreateTheater registers a new operating room.
func (s *Scheduler) CreateTheater(ctx context.Context, t *Theater) error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !ValidTheaterType(t.Type) {
		return fmt.Errorf("unknown theater type %q", t.Type)
	}
	return s.theaters.Create(ctx, t)
}

func (s *Scheduler) GetTheater(ctx context.Context, id uuid.UUID) (*Theater, error) {
	return s.theaters.GetByID(ctx, id)
}

func (s *Scheduler) ListTheaters(ctx context.Context, activeOnly bool, limit, offset int) ([]*Theater, int, error) {
	return s.theaters.List(ctx, activeOnly, limit, offset)
}

func (s *Scheduler) UpdateTheater(ctx context.Context, t *Theater) error {
	if !ValidTheaterType(t.Type) {
		return fmt.Errorf("unknown theater type %q", t.Type)
	}
	return s.theaters.Update(ctx, t)
}

func (s *Scheduler) record(ctx context.Context, actorID string, bookingID uuid.UUID, action, prev, next string) {
	e := audit.Event{
		ActorID:    actorID,
		TargetType: audit.TargetBooking,
		TargetID:   bookingID,
		Action:     action,
		Recorded:   time.Now().UTC(),
	}
	if prev != "" {
		e.PreviousState = &prev
	}
	if next != "" {
		e.NewState = &next
	}
	if err := s.recorder.Record(ctx, e); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("booking audit failed")
	}
}
