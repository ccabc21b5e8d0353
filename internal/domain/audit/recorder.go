package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// Recorder is the append-only sink the state machine and scheduler write to.
// Recording failures must never roll back the mutation they describe; callers
// log and continue.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// LogRecorder writes audit events to the structured log only. It backs the
// Recorder contract in tests and in deployments that ship audit to a log
// pipeline instead of the database.
type LogRecorder struct {
	logger zerolog.Logger
}

func NewLogRecorder(logger zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(_ context.Context, e Event) error {
	evt := r.logger.Info().
		Str("type", "audit").
		Str("actor_id", e.ActorID).
		Str("target_type", e.TargetType).
		Str("target_id", e.TargetID.String()).
		Str("action", e.Action).
		Time("recorded", e.Recorded)
	if e.PreviousState != nil {
		evt = evt.Str("previous_state", *e.PreviousState)
	}
	if e.NewState != nil {
		evt = evt.Str("new_state", *e.NewState)
	}
	evt.Msg("audit event")
	return nil
}
