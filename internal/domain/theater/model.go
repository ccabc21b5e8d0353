// Package theater manages operating rooms and their bookings. The scheduler
// guarantees that no two active bookings on one theater overlap in time.
package theater

import (
	"time"

	"github.com/google/uuid"
)

// Theater types.
const (
	TypeMajor         = "major"
	TypeMinor         = "minor"
	TypeProcedureRoom = "procedure-room"
)

// Theater is a schedulable operating room. OperationalHours is free text for
// display only; the scheduler does not enforce it, out-of-hours bookings stay
// possible for emergency cases.
type Theater struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Type             string    `db:"type" json:"type"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	Capabilities     []string  `db:"capabilities" json:"capabilities"`
	OperationalHours string    `db:"operational_hours" json:"operational_hours"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Booking statuses.
const (
	BookingProvisional = "provisional"
	BookingConfirmed   = "confirmed"
	BookingCancelled   = "cancelled"
)

// Booking reserves a half-open interval [StartTime, EndTime) on a theater
// for a case. A case holds at most one non-cancelled booking at a time.
type Booking struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TheaterID uuid.UUID `db:"theater_id" json:"theater_id"`
	CaseID    uuid.UUID `db:"case_id" json:"case_id"`
	Status    string    `db:"status" json:"status"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Active reports whether the booking still occupies its slot.
func (b *Booking) Active() bool {
	return b.Status != BookingCancelled
}

// Overlaps applies the half-open interval test against another booking.
// Touching boundaries (one ends exactly when the other starts) do not
// overlap.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return start.Before(b.EndTime) && b.StartTime.Before(end)
}

// Relevant reports whether a booking should still appear on a time-aware
// dashboard: its end plus the grace window is after asOf. A booking with a
// zero end time is always relevant.
func Relevant(b *Booking, asOf time.Time, graceMinutes int) bool {
	if b.EndTime.IsZero() {
		return true
	}
	return b.EndTime.Add(time.Duration(graceMinutes) * time.Minute).After(asOf)
}

// ValidTheaterType reports whether t is a known theater type.
func ValidTheaterType(t string) bool {
	switch t {
	case TypeMajor, TypeMinor, TypeProcedureRoom:
		return true
	}
	return false
}
