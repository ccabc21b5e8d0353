package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service records events into the repository and serves trail queries. It
// implements Recorder for the mutating domains.
type Service struct {
	events Repository
	logger zerolog.Logger
}

func NewService(events Repository, logger zerolog.Logger) *Service {
	return &Service{events: events, logger: logger}
}

// Record appends an audit event. The caller has already committed the change
// the event describes, so a persistence failure here is logged and returned
// but must not be used to undo anything.
func (s *Service) Record(ctx context.Context, e Event) error {
	if e.ActorID == "" {
		return fmt.Errorf("actor_id is required")
	}
	if e.TargetType == "" {
		return fmt.Errorf("target_type is required")
	}
	if e.Action == "" {
		return fmt.Errorf("action is required")
	}
	if e.Recorded.IsZero() {
		e.Recorded = time.Now().UTC()
	}
	if err := s.events.Append(ctx, &e); err != nil {
		s.logger.Error().Err(err).
			Str("target_type", e.TargetType).
			Str("target_id", e.TargetID.String()).
			Str("action", e.Action).
			Msg("audit append failed")
		return err
	}
	return nil
}

func (s *Service) TrailForTarget(ctx context.Context, targetType string, targetID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	return s.events.ListByTarget(ctx, targetType, targetID, limit, offset)
}

func (s *Service) TrailForActor(ctx context.Context, actorID string, limit, offset int) ([]*Event, int, error) {
	return s.events.ListByActor(ctx, actorID, limit, offset)
}
