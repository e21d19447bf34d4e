package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/placement/internal/directory"
	"github.com/roach88/placement/internal/domain"
	"github.com/roach88/placement/internal/engine"
	"github.com/roach88/placement/internal/scheduler"
	"github.com/roach88/placement/internal/store"
	"github.com/roach88/placement/internal/testutil"
)

// Harness runs one scenario against a fresh store with a fixed clock and
// sequential event IDs, so repeated runs produce identical traces.
type Harness struct {
	clock      *testutil.FixedClock
	engine     *engine.Engine
	clients    *directory.ClientDirectory
	candidates *directory.CandidateDirectory
	publisher  *scheduler.DailyPublisher
}

// Run executes a scenario against a new database at dbPath. Scenarios built
// in code are validated the same way as loaded ones.
func Run(ctx context.Context, scenario *Scenario, dbPath string) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	start := DefaultStart
	if scenario.Start != "" {
		t, err := time.Parse(time.RFC3339, scenario.Start)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		start = t
	}
	loc := time.UTC
	if scenario.TimeZone != "" {
		l, err := time.LoadLocation(scenario.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("time_zone: %w", err)
		}
		loc = l
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewFixedClock(start)
	dirOpts := []directory.Option{directory.WithClock(clock), directory.WithLogger(logger)}
	h := &Harness{
		clock: clock,
		engine: engine.New(st,
			engine.WithClock(clock),
			engine.WithIDGenerator(testutil.NewSequentialIDGenerator()),
			engine.WithLogger(logger),
			engine.WithLocation(loc),
		),
		clients:    directory.NewClientDirectory(st, dirOpts...),
		candidates: directory.NewCandidateDirectory(st, dirOpts...),
	}
	h.publisher, err = scheduler.New(h.engine, scheduler.LogPublisher{Logger: logger}, "0 8 * * *",
		scheduler.WithClock(clock),
		scheduler.WithLogger(logger),
		scheduler.WithLocation(loc),
	)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Setup {
		ev, err := h.execute(ctx, step)
		result.addTrace(ev)
		if err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Op, err)
		}
	}

	for i, step := range scenario.Flow {
		ev, err := h.execute(ctx, step)
		ev = result.addTrace(ev)
		checkExpect(result, i, step, ev, err)
	}

	for i, a := range scenario.Assertions {
		if err := h.evaluate(ctx, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}

	summaries, err := h.summarize(ctx)
	if err != nil {
		return nil, err
	}
	result.Requests = summaries
	return result, nil
}

func checkExpect(result *Result, i int, step Step, ev TraceEvent, err error) {
	if step.Expect == nil {
		if err != nil {
			result.AddError(fmt.Sprintf("flow[%d] %s: unexpected error: %v", i, step.Op, err))
		}
		return
	}
	if ev.Outcome != step.Expect.Outcome {
		msg := fmt.Sprintf("flow[%d] %s: expected outcome %s, got %s", i, step.Op, step.Expect.Outcome, ev.Outcome)
		if err != nil {
			msg += ": " + err.Error()
		}
		result.AddError(msg)
		return
	}
	if step.Expect.State != "" && ev.State != step.Expect.State {
		result.AddError(fmt.Sprintf("flow[%d] %s: expected state %s, got %s", i, step.Op, step.Expect.State, ev.State))
	}
}

// execute runs one step and describes it as a trace event. The event's
// outcome reflects the returned error.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return TraceEvent{Op: step.Op, Outcome: outcomeUnknown}, err
		}
		h.clock.Advance(d)
	}
	if step.Actor != "" {
		ctx = engine.WithActor(ctx, step.Actor)
	}

	ev := TraceEvent{Op: step.Op}
	a := args(step.Args)
	var err error
	switch step.Op {
	case "client.register":
		var c domain.Client
		c, err = h.clients.Register(ctx, domain.ClientAttrs{
			Code:  a.str("code"),
			Name:  a.str("name"),
			Phone: a.str("phone"),
			Email: a.str("email"),
		})
		ev.Ref = c.Code

	case "candidate.create":
		var c domain.Candidate
		c, err = h.candidates.Create(ctx, domain.CandidateAttrs{
			NationalID: a.str("national_id"),
			FullName:   a.str("full_name"),
			Phone:      a.str("phone"),
			Email:      a.str("email"),
			Skills:     a.str("skills"),
		})
		ev.Ref, ev.State = c.Code, string(c.State)

	case "candidate.state":
		err = h.changeCandidateState(ctx, step, a, &ev)

	case "request.create":
		err = h.createRequest(ctx, a, &ev)

	case "request.transition":
		err = h.transition(ctx, a, &ev)

	case "replacement.open":
		err = h.openReplacement(ctx, a, &ev)

	case "replacement.resolve":
		err = h.resolveReplacement(ctx, a, &ev)

	case "publish.run":
		var res scheduler.Result
		res, err = h.publisher.RunOnce(ctx)
		ev.Detail = strings.Join(res.Published, ",")

	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}
	if err == nil {
		err = a.err
	}
	ev.Outcome = outcomeOf(err)
	return ev, err
}

func (h *Harness) changeCandidateState(ctx context.Context, step Step, a *argReader, ev *TraceEvent) error {
	c, err := h.candidates.GetByCode(ctx, a.str("candidate"))
	if err != nil {
		return err
	}
	ev.Ref = c.Code
	state, err := domain.ParseCandidateState(a.str("state"))
	if err != nil {
		return err
	}
	actor := step.Actor
	if actor == "" {
		actor = domain.SystemActor
	}
	c, err = h.candidates.ChangeState(ctx, c.ID, state, actor, a.str("note"))
	if err != nil {
		return err
	}
	ev.State = string(c.State)
	return nil
}

func (h *Harness) createRequest(ctx context.Context, a *argReader, ev *TraceEvent) error {
	c, err := h.clients.GetByCode(ctx, a.str("client"))
	if err != nil {
		return err
	}
	r, err := h.engine.CreateRequest(ctx, c.ID, domain.RequestAttrs{
		Position: a.str("position"),
		Modality: a.str("modality"),
		Notes:    a.str("notes"),
	})
	if err != nil {
		return err
	}
	ev.Ref, ev.State = r.Code, string(r.State)
	return nil
}

func (h *Harness) transition(ctx context.Context, a *argReader, ev *TraceEvent) error {
	r, err := h.engine.GetByCode(ctx, a.str("request"))
	if err != nil {
		return err
	}
	ev.Ref = r.Code
	ev.Detail = a.str("action")
	action, err := engine.ParseAction(a.str("action"))
	if err != nil {
		return err
	}

	p := engine.Payload{
		Plan:            domain.Plan(a.str("plan")),
		Amount:          a.str("amount"),
		Reason:          a.str("reason"),
		PlannedStart:    a.time("planned_start"),
		ExpectedVersion: a.int("version"),
	}
	if at := a.time("at"); at != nil {
		p.At = *at
	}
	if raw := a.str("deposit"); raw != "" {
		if p.Deposit, err = domain.ParseAmount(raw); err != nil {
			return err
		}
	}
	if code := a.str("candidate"); code != "" {
		c, err := h.candidates.GetByCode(ctx, code)
		if err != nil {
			return err
		}
		p.CandidateID = c.ID
	}

	if a.err != nil {
		return a.err
	}

	defer h.refreshState(ctx, r.ID, ev)
	_, err = h.engine.Transition(ctx, r.ID, action, p)
	return err
}

func (h *Harness) openReplacement(ctx context.Context, a *argReader, ev *TraceEvent) error {
	r, err := h.engine.GetByCode(ctx, a.str("request"))
	if err != nil {
		return err
	}
	defer h.refreshState(ctx, r.ID, ev)
	var oldID int64
	if code := a.str("candidate"); code != "" {
		c, err := h.candidates.GetByCode(ctx, code)
		if err != nil {
			return err
		}
		oldID = c.ID
	}
	planned := a.time("planned_start")
	if a.err != nil {
		return a.err
	}
	rp, err := h.engine.OpenReplacement(ctx, r.ID, oldID, a.str("reason"), planned)
	ev.Ref = r.Code
	if err == nil {
		ev.Detail = "replacement " + strconv.FormatInt(rp.ID, 10)
	}
	return err
}

func (h *Harness) resolveReplacement(ctx context.Context, a *argReader, ev *TraceEvent) error {
	id := a.int("replacement")
	if a.err != nil {
		return a.err
	}
	rp, err := h.engine.GetReplacement(ctx, id)
	if err != nil {
		return err
	}
	r, err := h.engine.Get(ctx, rp.RequestID)
	if err != nil {
		return err
	}
	ev.Ref = r.Code
	ev.Detail = "replacement " + strconv.FormatInt(id, 10)
	defer h.refreshState(ctx, r.ID, ev)

	c, err := h.candidates.GetByCode(ctx, a.str("candidate"))
	if err != nil {
		return err
	}
	start, isNew := a.time("start"), a.bool("new_opportunity")
	if a.err != nil {
		return a.err
	}
	_, err = h.engine.ResolveReplacement(ctx, id, c.ID, start, isNew)
	return err
}

// refreshState records the request's current state on the event, whether or
// not the step succeeded.
func (h *Harness) refreshState(ctx context.Context, id int64, ev *TraceEvent) {
	if r, err := h.engine.Get(ctx, id); err == nil {
		ev.State = string(r.State)
	}
}

func (h *Harness) summarize(ctx context.Context) ([]RequestSummary, error) {
	listings, err := h.engine.ListRequests(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]RequestSummary, 0, len(listings))
	for _, l := range listings {
		events, err := h.engine.Events(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		actions := make([]string, len(events))
		for i, ev := range events {
			actions[i] = ev.Action
		}
		summaries = append(summaries, RequestSummary{
			Code:    l.Code,
			State:   string(l.State),
			Version: l.Version,
			Events:  actions,
		})
	}
	return summaries, nil
}

// argReader reads typed values out of YAML step arguments. The first
// conversion failure is kept in err and reported once the step runs.
type argReader struct {
	m   map[string]any
	err error
}

func args(m map[string]any) *argReader {
	return &argReader{m: m}
}

func (a *argReader) fail(key string, v any, want string) {
	if a.err == nil {
		a.err = domain.NewValidationError(key, fmt.Sprintf("arg %s: %v is not %s", key, v, want))
	}
}

func (a *argReader) str(key string) string {
	v, ok := a.m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func (a *argReader) int(key string) int64 {
	v, ok := a.m[key]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			a.fail(key, v, "an integer")
		}
		return n
	default:
		a.fail(key, v, "an integer")
		return 0
	}
}

func (a *argReader) bool(key string) bool {
	v, ok := a.m[key]
	if !ok || v == nil {
		return false
	}
	b, isBool := v.(bool)
	if !isBool {
		a.fail(key, v, "a boolean")
	}
	return b
}

func (a *argReader) time(key string) *time.Time {
	v, ok := a.m[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			a.fail(key, v, "an RFC 3339 time")
			return nil
		}
		return &parsed
	default:
		a.fail(key, v, "an RFC 3339 time")
		return nil
	}
}
