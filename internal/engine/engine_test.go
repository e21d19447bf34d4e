package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/placement/internal/directory"
	"github.com/roach88/placement/internal/domain"
	"github.com/roach88/placement/internal/store"
	"github.com/roach88/placement/internal/testutil"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	store      *store.Store
	clock      *testutil.FixedClock
	engine     *Engine
	clients    *directory.ClientDirectory
	candidates *directory.CandidateDirectory
}

func newHarness(t *testing.T, opts ...EngineOption) harness {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewFixedClock(t0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := []EngineOption{
		WithClock(clock),
		WithIDGenerator(testutil.NewSequentialIDGenerator()),
		WithLogger(logger),
	}
	dirOpts := []directory.Option{directory.WithClock(clock), directory.WithLogger(logger)}
	return harness{
		store:      s,
		clock:      clock,
		engine:     New(s, append(base, opts...)...),
		clients:    directory.NewClientDirectory(s, dirOpts...),
		candidates: directory.NewCandidateDirectory(s, dirOpts...),
	}
}

func (h harness) client(t *testing.T, code, name string) domain.Client {
	t.Helper()
	c, err := h.clients.Register(context.Background(), domain.ClientAttrs{Code: code, Name: name, Phone: "809-555-1234"})
	require.NoError(t, err)
	return c
}

func (h harness) candidate(t *testing.T, nationalID, name string) domain.Candidate {
	t.Helper()
	c, err := h.candidates.Create(context.Background(), domain.CandidateAttrs{NationalID: nationalID, FullName: name})
	require.NoError(t, err)
	return c
}

func (h harness) request(t *testing.T, clientID int64) domain.Request {
	t.Helper()
	r, err := h.engine.CreateRequest(context.Background(), clientID, domain.RequestAttrs{Position: "Nanny"})
	require.NoError(t, err)
	return r
}

func (h harness) events(t *testing.T, id int64) []string {
	t.Helper()
	events, err := h.engine.Events(context.Background(), id)
	require.NoError(t, err)
	actions := make([]string, len(events))
	for i, ev := range events {
		actions[i] = ev.Action
	}
	return actions
}

func TestCreateRequest_CountAndSuffix(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "Familia Pérez")

	var codes []string
	for i := 0; i < 28; i++ {
		r := h.request(t, c.ID)
		codes = append(codes, r.Code)
	}

	assert.Equal(t, "C001-A", codes[0])
	assert.Equal(t, "C001-B", codes[1])
	assert.Equal(t, "C001-Z", codes[25])
	assert.Equal(t, "C001-AA", codes[26])
	assert.Equal(t, "C001-AB", codes[27])

	got, err := h.clients.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(28), got.RequestCount)
	require.NotNil(t, got.LastRequestAt)
	assert.True(t, got.LastRequestAt.Equal(t0))
}

func TestCreateRequest_CountsPerClient(t *testing.T) {
	h := newHarness(t)
	a := h.client(t, "C001", "A")
	b := h.client(t, "C002", "B")

	h.request(t, a.ID)
	h.request(t, a.ID)
	r := h.request(t, b.ID)

	assert.Equal(t, "C002-A", r.Code)
	assert.Equal(t, domain.RequestInProcess, r.State)
	assert.Equal(t, int64(1), r.Version)
	assert.Equal(t, []string{"create"}, h.events(t, r.ID))
}

func TestCreateRequest_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")

	_, err := h.engine.CreateRequest(ctx, c.ID, domain.RequestAttrs{Position: "  "})
	assert.True(t, domain.IsValidation(err))

	_, err = h.engine.CreateRequest(ctx, c.ID, domain.RequestAttrs{Position: "Cook", Modality: "weekends"})
	assert.True(t, domain.IsValidation(err))

	_, err = h.engine.CreateRequest(ctx, 999, domain.RequestAttrs{Position: "Cook"})
	assert.True(t, domain.IsNotFound(err))

	r, err := h.engine.CreateRequest(ctx, c.ID, domain.RequestAttrs{Position: "Cook", Modality: "live_out"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModalityLiveOut, r.Modality)
	assert.Equal(t, "C001-A", r.Code)

	got, err := h.clients.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.RequestCount)
}

func TestActivate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	r := h.request(t, c.ID)

	h.clock.Advance(time.Hour)
	active, err := h.engine.Activate(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestActive, active.State)
	assert.True(t, active.LastModifiedAt.Equal(t0.Add(time.Hour)))
	assert.Equal(t, int64(2), active.Version)

	_, err = h.engine.Activate(ctx, r.ID)
	require.Error(t, err)
	assert.True(t, domain.IsInvalidTransition(err))
	assert.Contains(t, err.Error(), "cannot activate a request in state active")

	_, err = h.engine.Activate(ctx, 404)
	assert.True(t, domain.IsNotFound(err))
}

func TestCancel_EmptyReasonLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	r := h.request(t, c.ID)

	for _, reason := range []string{"", "   ", "\t\n"} {
		_, err := h.engine.Cancel(ctx, r.ID, reason)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	}

	got, err := h.engine.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestInProcess, got.State)
	assert.Nil(t, got.CancelledAt)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, []string{"create"}, h.events(t, r.ID))
}

func TestCancel_RecordsReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	r := h.request(t, c.ID)
	_, err := h.engine.Activate(ctx, r.ID)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	got, err := h.engine.Cancel(WithActor(ctx, "ana"), r.ID, "  client found someone  ")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestCancelled, got.State)
	require.NotNil(t, got.CancelledAt)
	assert.True(t, got.CancelledAt.Equal(t0.Add(2*time.Hour)))
	assert.Equal(t, "client found someone", got.CancellationReason)

	events, err := h.engine.Events(ctx, r.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, "cancel", last.Action)
	assert.Equal(t, domain.RequestActive, last.FromState)
	assert.Equal(t, domain.RequestCancelled, last.ToState)
	assert.Equal(t, "ana", last.Actor)
	assert.Equal(t, "client found someone", last.Note)
}

func TestTerminalStatesRejectEveryTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	cand := h.candidate(t, "00112345678", "Ana Peña")

	cancelled := h.request(t, c.ID)
	_, err := h.engine.Cancel(ctx, cancelled.ID, "duplicate")
	require.NoError(t, err)

	paid := h.request(t, c.ID)
	_, err = h.engine.RegisterPayment(ctx, paid.ID, cand.ID, "1500")
	require.NoError(t, err)

	for _, id := range []int64{cancelled.ID, paid.ID} {
		before, err := h.engine.Get(ctx, id)
		require.NoError(t, err)

		steps := map[string]func() error{
			"activate": func() error { _, err := h.engine.Activate(ctx, id); return err },
			"reactivate_with_plan": func() error {
				_, err := h.engine.ReactivateWithPlan(ctx, id, domain.PlanBasic, 0)
				return err
			},
			"register_payment": func() error { _, err := h.engine.RegisterPayment(ctx, id, cand.ID, "10"); return err },
			"cancel":           func() error { _, err := h.engine.Cancel(ctx, id, "again"); return err },
			"cancel_direct":    func() error { _, err := h.engine.CancelDirect(ctx, id); return err },
			"open_replacement": func() error {
				_, err := h.engine.OpenReplacement(ctx, id, cand.ID, "no show", nil)
				return err
			},
			"mark_published": func() error { _, err := h.engine.MarkPublished(ctx, id, time.Time{}); return err },
		}
		for name, step := range steps {
			err := step()
			require.Error(t, err, name)
			assert.True(t, domain.IsInvalidTransition(err), "%s from %s: %v", name, before.State, err)
		}

		after, err := h.engine.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	}
}

func TestResolveReplacement_TerminalRequestRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	failed := h.candidate(t, "00112345678", "Ana Peña")
	next := h.candidate(t, "00287654321", "Rosa Díaz")

	finish := map[string]func(id int64) error{
		"cancelled": func(id int64) error { _, err := h.engine.Cancel(ctx, id, "client withdrew"); return err },
		"paid":      func(id int64) error { _, err := h.engine.RegisterPayment(ctx, id, failed.ID, "1500"); return err },
	}
	for name, end := range finish {
		t.Run(name, func(t *testing.T) {
			r := h.request(t, c.ID)
			rp, err := h.engine.OpenReplacement(ctx, r.ID, failed.ID, "no show", nil)
			require.NoError(t, err)
			require.NoError(t, end(r.ID))

			before, err := h.engine.Get(ctx, r.ID)
			require.NoError(t, err)
			eventsBefore := h.events(t, r.ID)

			_, err = h.engine.ResolveReplacement(ctx, rp.ID, next.ID, nil, false)
			require.Error(t, err)
			assert.True(t, domain.IsInvalidTransition(err), err)

			after, err := h.engine.Get(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Equal(t, eventsBefore, h.events(t, r.ID))

			stored, err := h.engine.GetReplacement(ctx, rp.ID)
			require.NoError(t, err)
			assert.False(t, stored.Resolved())
		})
	}
}

func TestCancelDirect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	r := h.request(t, c.ID)

	got, err := h.engine.CancelDirect(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestCancelled, got.State)
	assert.Equal(t, DirectCancelReason, got.CancellationReason)

	active := h.request(t, c.ID)
	_, err = h.engine.Activate(ctx, active.ID)
	require.NoError(t, err)
	_, err = h.engine.CancelDirect(ctx, active.ID)
	assert.True(t, domain.IsInvalidTransition(err))
}

func TestReactivateWithPlan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	cand := h.candidate(t, "00112345678", "Ana Peña")
	r := h.request(t, c.ID)

	_, err := h.engine.ReactivateWithPlan(ctx, r.ID, domain.Plan("gold"), 100)
	assert.True(t, domain.IsValidation(err))
	_, err = h.engine.ReactivateWithPlan(ctx, r.ID, domain.PlanBasic, -1)
	assert.True(t, domain.IsValidation(err))

	_, err = h.engine.OpenReplacement(ctx, r.ID, cand.ID, "no show", nil)
	require.NoError(t, err)

	got, err := h.engine.ReactivateWithPlan(ctx, r.ID, domain.PlanPremium, 250000)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestActive, got.State)
	assert.Equal(t, domain.PlanPremium, got.Plan)
	assert.Equal(t, domain.Cents(250000), got.Deposit)

	again, err := h.engine.ReactivateWithPlan(ctx, r.ID, domain.PlanStandard, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanStandard, again.Plan)
}

func TestRegisterPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	cand := h.candidate(t, "00112345678", "Ana Peña")
	r := h.request(t, c.ID)

	for _, amount := range []string{"", "abc", "0", "-5", "1.234"} {
		_, err := h.engine.RegisterPayment(ctx, r.ID, cand.ID, amount)
		assert.True(t, domain.IsValidation(err), amount)
	}

	_, err := h.engine.RegisterPayment(ctx, r.ID, 999, "100")
	assert.True(t, domain.IsNotFound(err))

	h.clock.Advance(time.Hour)
	got, err := h.engine.RegisterPayment(ctx, r.ID, cand.ID, "RD$ 1,500.50")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPaid, got.State)
	require.NotNil(t, got.CandidateID)
	assert.Equal(t, cand.ID, *got.CandidateID)
	require.NotNil(t, got.AmountPaid)
	assert.Equal(t, domain.Cents(150050), *got.AmountPaid)
	require.NotNil(t, got.LastActivityAt)
	assert.True(t, got.LastActivityAt.Equal(t0.Add(time.Hour)))

	placed, err := h.candidates.Get(ctx, cand.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CandidateWorking, placed.State)
	assert.Equal(t, domain.SystemActor, placed.StateChangedBy)

	log, err := h.candidates.StateLog(ctx, cand.ID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "placed on request C001-A", log[0].Note)
}

func TestRegisterPayment_DisqualifiedCandidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	cand := h.candidate(t, "00112345678", "Ana Peña")
	_, err := h.candidates.ChangeState(ctx, cand.ID, domain.CandidateDisqualified, "luis", "no references")
	require.NoError(t, err)
	r := h.request(t, c.ID)

	_, err = h.engine.RegisterPayment(ctx, r.ID, cand.ID, "100")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	got, err := h.engine.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestInProcess, got.State)
	assert.Nil(t, got.CandidateID)
}

func TestTransition_Dispatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	cand := h.candidate(t, "00112345678", "Ana Peña")
	r := h.request(t, c.ID)

	_, err := h.engine.Transition(ctx, r.ID, Action("archive"), Payload{})
	assert.True(t, domain.IsValidation(err))

	got, err := h.engine.Transition(ctx, r.ID, ActionActivate, Payload{})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestActive, got.State)

	got, err = h.engine.Transition(ctx, r.ID, ActionOpenReplacement, Payload{CandidateID: cand.ID, Reason: "sick"})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestReplacement, got.State)

	got, err = h.engine.Transition(ctx, r.ID, ActionReactivateWithPlan, Payload{Plan: domain.PlanBasic, Deposit: 5000})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestActive, got.State)

	got, err = h.engine.Transition(ctx, r.ID, ActionMarkPublished, Payload{})
	require.NoError(t, err)
	require.NotNil(t, got.LastPublishedAt)

	got, err = h.engine.Transition(ctx, r.ID, ActionRegisterPayment, Payload{CandidateID: cand.ID, Amount: "900"})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPaid, got.State)

	assert.Equal(t, []string{
		"create", "activate", "open_replacement", "reactivate_with_plan", "mark_published", "register_payment",
	}, h.events(t, r.ID))
}

func TestTransition_StaleVersionRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	r := h.request(t, c.ID)

	seen := r.Version
	_, err := h.engine.Activate(ctx, r.ID)
	require.NoError(t, err)

	_, err = h.engine.Transition(ctx, r.ID, ActionCancel, Payload{Reason: "dup", ExpectedVersion: seen})
	require.Error(t, err)
	assert.True(t, domain.IsInvalidTransition(err))
	assert.Contains(t, err.Error(), "state changed concurrently")

	got, err := h.engine.Transition(ctx, r.ID, ActionCancel, Payload{Reason: "dup", ExpectedVersion: seen + 1})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestCancelled, got.State)
}

func TestEvents_UnknownRequest(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Events(context.Background(), 5)
	assert.True(t, domain.IsNotFound(err))
}

func TestLookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	r := h.request(t, c.ID)

	byID, err := h.engine.Lookup(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, r.Code, byID.Code)

	byCode, err := h.engine.Lookup(ctx, " c001-a ")
	require.NoError(t, err)
	assert.Equal(t, r.ID, byCode.ID)

	_, err = h.engine.Lookup(ctx, "C001-Q")
	assert.True(t, domain.IsNotFound(err))
}

func TestFindRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	perez, err := h.clients.Register(ctx, domain.ClientAttrs{Code: "C001", Name: "Familia Pérez", Phone: "809-555-1234"})
	require.NoError(t, err)
	gomez, err := h.clients.Register(ctx, domain.ClientAttrs{Code: "C002", Name: "Hotel Gómez", Phone: "829-555-0000"})
	require.NoError(t, err)

	_, err = h.engine.CreateRequest(ctx, perez.ID, domain.RequestAttrs{Position: "Niñera"})
	require.NoError(t, err)
	_, err = h.engine.CreateRequest(ctx, perez.ID, domain.RequestAttrs{Position: "Cocinera"})
	require.NoError(t, err)
	_, err = h.engine.CreateRequest(ctx, gomez.ID, domain.RequestAttrs{Position: "Camarera"})
	require.NoError(t, err)

	found, err := h.engine.FindRequest(ctx, "c001-b")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "C001-B", found[0].Code)

	found, err = h.engine.FindRequest(ctx, "perez ninera")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "C001-A", found[0].Code)

	found, err = h.engine.FindRequest(ctx, "829 555")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "C002-A", found[0].Code)
	assert.Equal(t, "Hotel Gómez", found[0].ClientName)

	found, err = h.engine.FindRequest(ctx, "pérez")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "C001-B", found[0].Code)
	assert.Equal(t, "C001-A", found[1].Code)
}

func TestFindCandidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.candidate(t, "00112345678", "María Pérez")
	jose := h.candidate(t, "40200000001", "José de la Cruz")

	found, err := h.engine.FindCandidate(ctx, "CAN-000002")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, jose.ID, found[0].ID)

	found, err = h.engine.FindCandidate(ctx, "402-0000000-1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, jose.ID, found[0].ID)

	for _, q := range []string{"perez", "jose cruz", "CAN-000001", "", "nadie"} {
		fromEngine, err := h.engine.FindCandidate(ctx, q)
		require.NoError(t, err)
		fromDirectory, err := h.candidates.Find(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, fromDirectory, fromEngine, q)
	}
}

func TestClosedStoreIsRetryable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	require.NoError(t, h.store.Close())

	_, err := h.engine.CreateRequest(ctx, c.ID, domain.RequestAttrs{Position: "Cook"})
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestActorFrom(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, domain.SystemActor, ActorFrom(ctx))
	assert.Equal(t, domain.SystemActor, ActorFrom(WithActor(ctx, "  ")))
	assert.Equal(t, "ana", ActorFrom(WithActor(ctx, " ana ")))
}
