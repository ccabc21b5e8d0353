package theater

import (
	"context"

	"github.com/google/uuid"
)

// TheaterRepository persists the static theater resources. GetByIDLocked must
// hold a row lock on the theater until the surrounding transaction ends; that
// lock serializes all booking writers for the theater, which is what makes
// the overlap check and the insert atomic. Locking existing booking rows is
// not enough: a concurrent writer's conflict may be with a row that is still
// being inserted.
type TheaterRepository interface {
	Create(ctx context.Context, t *Theater) error
	GetByID(ctx context.Context, id uuid.UUID) (*Theater, error)
	GetByIDLocked(ctx context.Context, id uuid.UUID) (*Theater, error)
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Theater, int, error)
	Update(ctx context.Context, t *Theater) error
}

// BookingRepository persists bookings.
type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ActiveForTheater(ctx context.Context, theaterID uuid.UUID) ([]*Booking, error)
	ActiveForCase(ctx context.Context, caseID uuid.UUID) (*Booking, error)
	ListForTheater(ctx context.Context, theaterID uuid.UUID) ([]*Booking, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
}
