package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for the append-only audit trail. There is
// deliberately no update or delete.
type Repository interface {
	Append(ctx context.Context, e *Event) error
	ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID, limit, offset int) ([]*Event, int, error)
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*Event, int, error)
}
