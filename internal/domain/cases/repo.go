package cases

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists surgical cases. UpdateStatusCAS is the only status
// write path: it compares (status, updated_at) against what the caller read
// and returns db.ErrConcurrentModification when another writer got there
// first.
type Repository interface {
	Create(ctx context.Context, c *SurgicalCase) error
	GetByID(ctx context.Context, id uuid.UUID) (*SurgicalCase, error)
	List(ctx context.Context, status string, limit, offset int) ([]*SurgicalCase, int, error)
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, fromStatus string, expectedUpdatedAt time.Time, toStatus string) (*SurgicalCase, error)
}
