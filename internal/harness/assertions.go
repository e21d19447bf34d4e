package harness

import (
	"context"
	"fmt"
	"slices"
)

// AssertionError describes a failed final-state assertion.
type AssertionError struct {
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expected, e.Actual)
}

// evaluate checks one assertion against the current store contents.
func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertRequestState:
		r, err := h.engine.GetByCode(ctx, a.Request)
		if err != nil {
			return err
		}
		if string(r.State) != a.State {
			return &AssertionError{Expected: a.Request + " " + a.State, Actual: string(r.State)}
		}

	case AssertCandidateState:
		c, err := h.candidates.GetByCode(ctx, a.Candidate)
		if err != nil {
			return err
		}
		if string(c.State) != a.State {
			return &AssertionError{Expected: a.Candidate + " " + a.State, Actual: string(c.State)}
		}

	case AssertEventOrder:
		actions, err := h.eventActions(ctx, a.Request)
		if err != nil {
			return err
		}
		if !slices.Equal(actions, a.Actions) {
			return &AssertionError{Expected: fmt.Sprint(a.Actions), Actual: fmt.Sprint(actions)}
		}

	case AssertEventCount:
		actions, err := h.eventActions(ctx, a.Request)
		if err != nil {
			return err
		}
		n := 0
		for _, action := range actions {
			if action == a.Action {
				n++
			}
		}
		if n != a.Count {
			return &AssertionError{
				Expected: fmt.Sprintf("%d %s events", a.Count, a.Action),
				Actual:   fmt.Sprint(n),
			}
		}

	case AssertEligible:
		eligible, err := h.engine.EligibleForPublication(ctx, h.clock.Now())
		if err != nil {
			return err
		}
		codes := make([]string, len(eligible))
		for i, r := range eligible {
			codes[i] = r.Code
		}
		want := a.Codes
		if want == nil {
			want = []string{}
		}
		if !slices.Equal(codes, want) {
			return &AssertionError{Expected: fmt.Sprint(want), Actual: fmt.Sprint(codes)}
		}

	case AssertHistory:
		r, err := h.engine.GetByCode(ctx, a.Request)
		if err != nil {
			return err
		}
		history, err := h.engine.History(ctx, r.ID)
		if err != nil {
			return err
		}
		labels := make([]string, len(history))
		for i, entry := range history {
			labels[i] = entry.Label + ": " + entry.CandidateName
		}
		want := a.Labels
		if want == nil {
			want = []string{}
		}
		if !slices.Equal(labels, want) {
			return &AssertionError{Expected: fmt.Sprint(want), Actual: fmt.Sprint(labels)}
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func (h *Harness) eventActions(ctx context.Context, code string) ([]string, error) {
	r, err := h.engine.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	events, err := h.engine.Events(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	actions := make([]string, len(events))
	for i, ev := range events {
		actions[i] = ev.Action
	}
	return actions, nil
}
