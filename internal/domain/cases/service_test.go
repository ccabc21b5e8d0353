package cases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orflow/orflow/internal/domain/audit"
	"github.com/orflow/orflow/internal/domain/readiness"
	"github.com/orflow/orflow/internal/domain/theater"
	"github.com/orflow/orflow/internal/platform/db"
)

type mockCaseRepo struct {
	cases map[uuid.UUID]*SurgicalCase
}

func newMockCaseRepo() *mockCaseRepo {
	return &mockCaseRepo{cases: make(map[uuid.UUID]*SurgicalCase)}
}

func (m *mockCaseRepo) Create(_ context.Context, c *SurgicalCase) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	m.cases[c.ID] = &cp
	return nil
}

func (m *mockCaseRepo) GetByID(_ context.Context, id uuid.UUID) (*SurgicalCase, error) {
	c, ok := m.cases[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCaseRepo) List(_ context.Context, status string, limit, offset int) ([]*SurgicalCase, int, error) {
	var out []*SurgicalCase
	for _, c := range m.cases {
		if status == "" || c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockCaseRepo) UpdateStatusCAS(_ context.Context, id uuid.UUID, from string, expected time.Time, to string) (*SurgicalCase, error) {
	c, ok := m.cases[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if c.Status != from || !c.UpdatedAt.Equal(expected) {
		return nil, db.ErrConcurrentModification
	}
	c.Status = to
	c.UpdatedAt = c.UpdatedAt.Add(time.Millisecond)
	cp := *c
	return &cp, nil
}

// stubGuard fails with a readiness error until cleared.
type stubGuard struct {
	missing []string
}

func (g *stubGuard) Validate(context.Context, uuid.UUID) error {
	if len(g.missing) == 0 {
		return nil
	}
	return &readiness.ValidationError{
		MissingItems:   g.missing,
		CompletedCount: 5 - len(g.missing),
		TotalRequired:  5,
	}
}

type stubGate struct {
	active    map[uuid.UUID]*theater.Booking
	cancelErr error
	cancelled []uuid.UUID
}

func newStubGate() *stubGate {
	return &stubGate{active: make(map[uuid.UUID]*theater.Booking)}
}

func (g *stubGate) ActiveForCase(_ context.Context, caseID uuid.UUID) (*theater.Booking, error) {
	b, ok := g.active[caseID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return b, nil
}

func (g *stubGate) CancelActiveForCase(_ context.Context, caseID uuid.UUID) (*theater.Booking, error) {
	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	b, ok := g.active[caseID]
	if !ok {
		return nil, nil
	}
	prior := *b
	b.Status = theater.BookingCancelled
	delete(g.active, caseID)
	g.cancelled = append(g.cancelled, caseID)
	return &prior, nil
}

type recordingSink struct {
	events []audit.Event
}

func (r *recordingSink) Record(_ context.Context, e audit.Event) error {
	r.events = append(r.events, e)
	return nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestMachine() (*StateMachine, *mockCaseRepo, *stubGuard, *stubGate, *recordingSink) {
	repo := newMockCaseRepo()
	guard := &stubGuard{missing: []string{
		readiness.ItemProcedurePlan, readiness.ItemRiskFactors, readiness.ItemSignedConsent,
		readiness.ItemPreOpPhoto, readiness.ItemNurseChecklist,
	}}
	gate := newStubGate()
	sink := &recordingSink{}
	sm := NewStateMachine(repo, guard, gate, sink, passthroughTx, zerolog.Nop())
	return sm, repo, guard, gate, sink
}

func mustCase(t *testing.T, sm *StateMachine) *SurgicalCase {
	t.Helper()
	c := &SurgicalCase{
		PatientID:        uuid.New(),
		PrimarySurgeonID: "surgeon-1",
		Urgency:          UrgencyElective,
		Diagnosis:        "deviated septum",
		ProcedureName:    "septoplasty",
	}
	if err := sm.CreateCase(context.Background(), c, "surgeon-1"); err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	return c
}

// advance walks the case through the chain to target using the machine
// itself, satisfying guards along the way.
func advance(t *testing.T, sm *StateMachine, guard *stubGuard, gate *stubGate, c *SurgicalCase, target string) *SurgicalCase {
	t.Helper()
	ctx := context.Background()
	steps := []string{StatusPlanning, StatusReadyForScheduling, StatusScheduled,
		StatusInPrep, StatusInTheater, StatusRecovery, StatusCompleted}
	guard.missing = nil
	gate.active[c.ID] = &theater.Booking{ID: uuid.New(), CaseID: c.ID, Status: theater.BookingConfirmed}
	cur := c
	for _, s := range steps {
		var err error
		cur, err = sm.Transition(ctx, c.ID, s, "surgeon-1")
		if err != nil {
			t.Fatalf("advance to %s: %v", s, err)
		}
		if s == target {
			break
		}
	}
	return cur
}

func TestCreateCaseStartsDraft(t *testing.T) {
	sm, _, _, _, sink := newTestMachine()
	c := mustCase(t, sm)
	if c.Status != StatusDraft {
		t.Errorf("status = %q, want draft", c.Status)
	}
	if len(sink.events) != 1 || sink.events[0].Action != "case-created" {
		t.Errorf("expected one case-created audit event, got %+v", sink.events)
	}
}

func TestCreateCaseValidation(t *testing.T) {
	sm, _, _, _, _ := newTestMachine()
	ctx := context.Background()

	if err := sm.CreateCase(ctx, &SurgicalCase{PrimarySurgeonID: "s", ProcedureName: "p"}, "s"); err == nil {
		t.Error("expected missing patient_id to fail")
	}
	if err := sm.CreateCase(ctx, &SurgicalCase{PatientID: uuid.New(), ProcedureName: "p"}, "s"); err == nil {
		t.Error("expected missing surgeon to fail")
	}
	if err := sm.CreateCase(ctx, &SurgicalCase{PatientID: uuid.New(), PrimarySurgeonID: "s", ProcedureName: "p", Urgency: "asap"}, "s"); err == nil {
		t.Error("expected unknown urgency to fail")
	}
}

func TestTransitionNotFound(t *testing.T) {
	sm, _, _, _, _ := newTestMachine()
	if _, err := sm.Transition(context.Background(), uuid.New(), StatusPlanning, "s"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestGuardBlocksUntilReady(t *testing.T) {
	sm, _, guard, _, _ := newTestMachine()
	c := mustCase(t, sm)
	ctx := context.Background()

	if _, err := sm.Transition(ctx, c.ID, StatusPlanning, "surgeon-1"); err != nil {
		t.Fatalf("to planning: %v", err)
	}

	// All five facts false: rejection carries the full missing list.
	_, err := sm.Transition(ctx, c.ID, StatusReadyForScheduling, "surgeon-1")
	var verr *readiness.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if len(verr.MissingItems) != 5 {
		t.Errorf("missing = %v, want 5 items", verr.MissingItems)
	}

	// Status unchanged after rejection.
	got, err := sm.GetCase(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if got.Status != StatusPlanning {
		t.Errorf("status = %q after rejected guard, want planning", got.Status)
	}

	// All facts satisfied: transition passes.
	guard.missing = nil
	updated, err := sm.Transition(ctx, c.ID, StatusReadyForScheduling, "surgeon-1")
	if err != nil {
		t.Fatalf("guarded transition: %v", err)
	}
	if updated.Status != StatusReadyForScheduling {
		t.Errorf("status = %q, want ready-for-scheduling", updated.Status)
	}
}

func TestScheduledRequiresActiveBooking(t *testing.T) {
	sm, _, guard, gate, _ := newTestMachine()
	c := mustCase(t, sm)
	ctx := context.Background()
	guard.missing = nil

	if _, err := sm.Transition(ctx, c.ID, StatusPlanning, "s"); err != nil {
		t.Fatal(err)
	}
	if _, err := sm.Transition(ctx, c.ID, StatusReadyForScheduling, "s"); err != nil {
		t.Fatal(err)
	}

	if _, err := sm.Transition(ctx, c.ID, StatusScheduled, "s"); !errors.Is(err, ErrNoActiveBooking) {
		t.Fatalf("got %v, want ErrNoActiveBooking", err)
	}

	gate.active[c.ID] = &theater.Booking{ID: uuid.New(), CaseID: c.ID, Status: theater.BookingConfirmed}
	updated, err := sm.Transition(ctx, c.ID, StatusScheduled, "s")
	if err != nil {
		t.Fatalf("with booking: %v", err)
	}
	if updated.Status != StatusScheduled {
		t.Errorf("status = %q, want scheduled", updated.Status)
	}
}

func TestIllegalEdges(t *testing.T) {
	sm, _, _, _, _ := newTestMachine()
	c := mustCase(t, sm)
	ctx := context.Background()

	cases := []struct {
		name   string
		target string
	}{
		{"skip ahead", StatusReadyForScheduling},
		{"far skip", StatusInTheater},
		{"jump to completed", StatusCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := sm.Transition(ctx, c.ID, tc.target, "s")
			var illegal *IllegalTransitionError
			if !errors.As(err, &illegal) {
				t.Fatalf("got %v, want IllegalTransitionError", err)
			}
			if illegal.From != StatusDraft || illegal.To != tc.target {
				t.Errorf("error detail %+v", illegal)
			}
		})
	}

	// Backward move.
	if _, err := sm.Transition(ctx, c.ID, StatusPlanning, "s"); err != nil {
		t.Fatal(err)
	}
	var illegal *IllegalTransitionError
	if _, err := sm.Transition(ctx, c.ID, StatusDraft, "s"); !errors.As(err, &illegal) {
		t.Fatalf("backward move: got %v, want IllegalTransitionError", err)
	}
}

func TestFullForwardChain(t *testing.T) {
	sm, _, guard, gate, _ := newTestMachine()
	c := mustCase(t, sm)

	final := advance(t, sm, guard, gate, c, StatusCompleted)
	if final.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", final.Status)
	}

	// Completed is terminal, even for cancellation.
	var illegal *IllegalTransitionError
	if _, err := sm.Transition(context.Background(), c.ID, StatusCancelled, "s"); !errors.As(err, &illegal) {
		t.Fatalf("cancel after completed: got %v, want IllegalTransitionError", err)
	}
}

func TestForwardOnlyInvariant(t *testing.T) {
	// A non-cancellation edge is legal exactly when it advances the graph
	// distance by one.
	for _, from := range chain {
		for _, to := range chain {
			df, ok := Distance(from)
			if !ok {
				t.Fatalf("%s has no distance", from)
			}
			dt, ok := Distance(to)
			if !ok {
				t.Fatalf("%s has no distance", to)
			}
			err := legalEdge(from, to)
			if err == nil && dt != df+1 {
				t.Errorf("legal edge %s -> %s moves distance %d to %d", from, to, df, dt)
			}
			if err != nil && dt == df+1 {
				t.Errorf("single forward step %s -> %s should be legal: %v", from, to, err)
			}
		}
	}
	if _, ok := Distance(StatusCancelled); ok {
		t.Error("cancelled should not sit on the forward chain")
	}
	// Cancellation is legal from every non-terminal state only.
	for _, from := range chain {
		err := legalEdge(from, StatusCancelled)
		if Terminal(from) && err == nil {
			t.Errorf("cancellation from terminal %s should be illegal", from)
		}
		if !Terminal(from) && err != nil {
			t.Errorf("cancellation from %s should be legal: %v", from, err)
		}
	}
}

func TestIdempotentRetransitionEmitsNoAudit(t *testing.T) {
	sm, _, _, _, sink := newTestMachine()
	c := mustCase(t, sm)
	ctx := context.Background()

	if _, err := sm.Transition(ctx, c.ID, StatusPlanning, "s"); err != nil {
		t.Fatal(err)
	}
	before := len(sink.events)

	got, err := sm.Transition(ctx, c.ID, StatusPlanning, "s")
	if err != nil {
		t.Fatalf("idempotent re-transition: %v", err)
	}
	if got.Status != StatusPlanning {
		t.Errorf("status = %q", got.Status)
	}
	if len(sink.events) != before {
		t.Errorf("idempotent re-transition emitted %d extra audit events", len(sink.events)-before)
	}
}

func TestCancellationCancelsBooking(t *testing.T) {
	sm, _, guard, gate, sink := newTestMachine()
	c := mustCase(t, sm)
	ctx := context.Background()

	advance(t, sm, guard, gate, c, StatusScheduled)
	booking := gate.active[c.ID]
	if booking == nil {
		t.Fatal("expected active booking after scheduling")
	}

	updated, err := sm.Transition(ctx, c.ID, StatusCancelled, "s")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != StatusCancelled {
		t.Errorf("case status = %q, want cancelled", updated.Status)
	}
	if booking.Status != theater.BookingCancelled {
		t.Errorf("booking status = %q, want cancelled", booking.Status)
	}
	if len(gate.cancelled) != 1 || gate.cancelled[0] != c.ID {
		t.Errorf("expected booking cancellation for case, got %v", gate.cancelled)
	}

	// The booking mutation gets its own audit event alongside the case one.
	var bookingEvents []audit.Event
	for _, e := range sink.events {
		if e.TargetType == audit.TargetBooking {
			bookingEvents = append(bookingEvents, e)
		}
	}
	if len(bookingEvents) != 1 {
		t.Fatalf("booking audit events = %d, want 1", len(bookingEvents))
	}
	be := bookingEvents[0]
	if be.Action != "booking-cancelled" || be.TargetID != booking.ID {
		t.Errorf("booking event = %+v", be)
	}
	if be.PreviousState == nil || *be.PreviousState != theater.BookingConfirmed {
		t.Errorf("previous state = %v, want confirmed", be.PreviousState)
	}
	if be.NewState == nil || *be.NewState != theater.BookingCancelled {
		t.Errorf("new state = %v, want cancelled", be.NewState)
	}
}

func TestCancellationWithoutBookingEmitsNoBookingAudit(t *testing.T) {
	sm, _, _, _, sink := newTestMachine()
	c := mustCase(t, sm)

	if _, err := sm.Transition(context.Background(), c.ID, StatusCancelled, "s"); err != nil {
		t.Fatalf("cancel from draft: %v", err)
	}
	for _, e := range sink.events {
		if e.TargetType == audit.TargetBooking {
			t.Errorf("unexpected booking audit event %+v", e)
		}
	}
}

func TestCancellationAbortsWhenBookingCancelFails(t *testing.T) {
	sm, _, guard, gate, _ := newTestMachine()
	c := mustCase(t, sm)
	ctx := context.Background()

	advance(t, sm, guard, gate, c, StatusScheduled)
	gate.cancelErr = errors.New("booking row locked")

	if _, err := sm.Transition(ctx, c.ID, StatusCancelled, "s"); err == nil {
		t.Fatal("expected cancellation to fail")
	}
	got, err := sm.GetCase(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusScheduled {
		t.Errorf("status = %q after failed cancellation, want scheduled", got.Status)
	}
}

func TestConcurrentModificationSurfaces(t *testing.T) {
	sm, repo, _, _, _ := newTestMachine()
	c := mustCase(t, sm)
	ctx := context.Background()

	// Another writer moves the case between our read and our write.
	repo.cases[c.ID].UpdatedAt = repo.cases[c.ID].UpdatedAt.Add(time.Second)

	if _, err := sm.Transition(ctx, c.ID, StatusPlanning, "s"); !errors.Is(err, db.ErrConcurrentModification) {
		t.Fatalf("got %v, want ErrConcurrentModification", err)
	}
}

func TestBeginPlanningIdempotent(t *testing.T) {
	sm, _, _, _, sink := newTestMachine()
	c := mustCase(t, sm)
	ctx := context.Background()

	if err := sm.BeginPlanning(ctx, c.ID, "surgeon-1"); err != nil {
		t.Fatalf("BeginPlanning: %v", err)
	}
	got, _ := sm.GetCase(ctx, c.ID)
	if got.Status != StatusPlanning {
		t.Errorf("status = %q, want planning", got.Status)
	}

	before := len(sink.events)
	if err := sm.BeginPlanning(ctx, c.ID, "surgeon-1"); err != nil {
		t.Fatalf("second BeginPlanning: %v", err)
	}
	if len(sink.events) != before {
		t.Error("idempotent BeginPlanning emitted an audit event")
	}

}

func TestBeginPlanningIllegalFromLaterStates(t *testing.T) {
	sm, _, guard, gate, _ := newTestMachine()
	c := mustCase(t, sm)

	advance(t, sm, guard, gate, c, StatusScheduled)

	var illegal *IllegalTransitionError
	if err := sm.BeginPlanning(context.Background(), c.ID, "surgeon-1"); !errors.As(err, &illegal) {
		t.Fatalf("got %v, want IllegalTransitionError", err)
	}
}
