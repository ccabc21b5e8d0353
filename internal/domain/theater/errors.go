package theater

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidInterval is returned for zero-length or inverted booking
// intervals.
var ErrInvalidInterval = errors.New("booking interval must have end after start")

// ConflictError reports an interval collision with an existing active
// booking on the same theater.
type ConflictError struct {
	ConflictingBookingID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("requested interval overlaps booking %s", e.ConflictingBookingID)
}
