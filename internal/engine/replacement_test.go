package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/placement/internal/domain"
)

func TestOpenReplacement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	cand := h.candidate(t, "00112345678", "Ana Peña")
	r := h.request(t, c.ID)

	_, err := h.engine.OpenReplacement(ctx, r.ID, cand.ID, "   ", nil)
	assert.True(t, domain.IsValidation(err))

	_, err = h.engine.OpenReplacement(ctx, r.ID, 0, "no show", nil)
	assert.True(t, domain.IsValidation(err))

	_, err = h.engine.OpenReplacement(ctx, r.ID, 999, "no show", nil)
	assert.True(t, domain.IsNotFound(err))

	got, err := h.engine.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestInProcess, got.State)

	loc := time.FixedZone("AST", -4*60*60)
	planned := time.Date(2024, 3, 4, 8, 0, 0, 0, loc)
	h.clock.Advance(time.Hour)
	rp, err := h.engine.OpenReplacement(ctx, r.ID, cand.ID, " no show ", &planned)
	require.NoError(t, err)
	assert.NotZero(t, rp.ID)
	assert.Equal(t, "no show", rp.Reason)
	assert.True(t, rp.FailedAt.Equal(t0.Add(time.Hour)))
	require.NotNil(t, rp.PlannedStart)
	assert.True(t, rp.PlannedStart.Equal(planned))
	assert.False(t, rp.Resolved())

	got, err = h.engine.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestReplacement, got.State)

	// A request already in replacement may record another failure.
	_, err = h.engine.RecordFailure(ctx, r.ID, cand.ID, "left early", nil)
	require.NoError(t, err)

	list, err := h.engine.Replacements(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "no show", list[0].Reason)
	assert.Equal(t, "left early", list[1].Reason)
}

func TestResolveReplacement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	ana := h.candidate(t, "00112345678", "Ana Peña")
	luis := h.candidate(t, "00187654321", "Luis Gómez")
	r := h.request(t, c.ID)

	first, err := h.engine.OpenReplacement(ctx, r.ID, ana.ID, "no show", nil)
	require.NoError(t, err)
	second, err := h.engine.OpenReplacement(ctx, r.ID, ana.ID, "no show again", nil)
	require.NoError(t, err)

	_, err = h.engine.ResolveReplacement(ctx, 999, luis.ID, nil, false)
	assert.True(t, domain.IsNotFound(err))
	_, err = h.engine.ResolveReplacement(ctx, first.ID, 999, nil, false)
	assert.True(t, domain.IsNotFound(err))

	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	h.clock.Advance(time.Hour)
	resolved, err := h.engine.ResolveReplacement(ctx, first.ID, luis.ID, &start, true)
	require.NoError(t, err)
	require.NotNil(t, resolved.NewCandidateID)
	assert.Equal(t, luis.ID, *resolved.NewCandidateID)
	assert.True(t, resolved.IsNewOpportunity)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, resolved.ResolvedAt.Equal(t0.Add(time.Hour)))
	require.NotNil(t, resolved.ReplacementStart)
	assert.True(t, resolved.ReplacementStart.Equal(start))

	// One replacement is still open, so the request stays in replacement.
	got, err := h.engine.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestReplacement, got.State)

	_, err = h.engine.ResolveReplacement(ctx, first.ID, luis.ID, nil, false)
	require.Error(t, err)
	assert.True(t, domain.IsInvalidTransition(err))

	_, err = h.engine.Resolve(ctx, second.ID, luis.ID, nil, false)
	require.NoError(t, err)
	got, err = h.engine.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestActive, got.State)

	assert.Equal(t, []string{
		"create", "open_replacement", "open_replacement", "resolve_replacement", "resolve_replacement",
	}, h.events(t, r.ID))
}

func TestResolveReplacement_DisqualifiedCandidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	ana := h.candidate(t, "00112345678", "Ana Peña")
	luis := h.candidate(t, "00187654321", "Luis Gómez")
	_, err := h.candidates.ChangeState(ctx, luis.ID, domain.CandidateDisqualified, "rosa", "fake references")
	require.NoError(t, err)
	r := h.request(t, c.ID)
	rp, err := h.engine.OpenReplacement(ctx, r.ID, ana.ID, "no show", nil)
	require.NoError(t, err)

	_, err = h.engine.ResolveReplacement(ctx, rp.ID, luis.ID, nil, false)
	assert.True(t, domain.IsValidation(err))

	list, err := h.engine.Replacements(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, list[0].Resolved())
}

func TestHistory_PositionCountsUnresolved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	ana := h.candidate(t, "00112345678", "Ana Peña")
	luis := h.candidate(t, "00187654321", "Luis Gómez")
	r := h.request(t, c.ID)

	_, err := h.engine.OpenReplacement(ctx, r.ID, ana.ID, "no show", nil)
	require.NoError(t, err)
	second, err := h.engine.OpenReplacement(ctx, r.ID, ana.ID, "sick", nil)
	require.NoError(t, err)
	_, err = h.engine.ResolveReplacement(ctx, second.ID, luis.ID, nil, false)
	require.NoError(t, err)

	history, err := h.engine.History(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.HistoryInitial, history[0].Type)
	assert.Equal(t, ana.ID, history[0].CandidateID)
	assert.Equal(t, domain.HistoryReplacement, history[1].Type)
	assert.Equal(t, "replacement #2", history[1].Label)
	assert.Equal(t, "Luis Gómez", history[1].CandidateName)
}

func TestHistory_WithoutReplacements(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	ana := h.candidate(t, "00112345678", "Ana Peña")

	unplaced := h.request(t, c.ID)
	history, err := h.engine.History(ctx, unplaced.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	paid := h.request(t, c.ID)
	h.clock.Advance(3 * time.Hour)
	_, err = h.engine.RegisterPayment(ctx, paid.ID, ana.ID, "100")
	require.NoError(t, err)

	history, err = h.engine.History(ctx, paid.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, InitialPlacementLabel, history[0].Label)
	assert.True(t, history[0].Date.Equal(t0.Add(3*time.Hour)))

	_, err = h.engine.History(ctx, 404)
	assert.True(t, domain.IsNotFound(err))
}

func TestHistory_PaidFromReplacementKeepsOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "A")
	ana := h.candidate(t, "00112345678", "Ana Peña")
	luis := h.candidate(t, "00187654321", "Luis Gómez")
	r := h.request(t, c.ID)

	h.clock.Advance(time.Hour)
	rp, err := h.engine.OpenReplacement(ctx, r.ID, ana.ID, "no show", nil)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)
	_, err = h.engine.RegisterPayment(ctx, r.ID, luis.ID, "900")
	require.NoError(t, err)

	history, err := h.engine.History(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, history, 1, "the open replacement has no entry")
	assert.Equal(t, ana.ID, history[0].CandidateID)
	assert.True(t, history[0].Date.Equal(t0), "dated at creation, not at the later payment")
	assert.True(t, history[0].Date.Before(rp.FailedAt))
}

func TestHistory_Golden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "C001", "Familia Pérez")
	ana := h.candidate(t, "00112345678", "Ana Peña")
	luis := h.candidate(t, "00187654321", "Luis Gómez")
	rosa := h.candidate(t, "40212345670", "Rosa Díaz")
	r := h.request(t, c.ID)

	h.clock.Advance(time.Hour)
	first, err := h.engine.OpenReplacement(ctx, r.ID, ana.ID, "no show", nil)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	_, err = h.engine.ResolveReplacement(ctx, first.ID, luis.ID, nil, false)
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	second, err := h.engine.OpenReplacement(ctx, r.ID, luis.ID, "left the job", nil)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	_, err = h.engine.ResolveReplacement(ctx, second.ID, rosa.ID, nil, true)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	_, err = h.engine.RegisterPayment(ctx, r.ID, rosa.ID, "1,500.00")
	require.NoError(t, err)

	history, err := h.engine.History(ctx, r.ID)
	require.NoError(t, err)

	data, err := json.MarshalIndent(history, "", "  ")
	require.NoError(t, err)
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "history_two_replacements", data)
}
