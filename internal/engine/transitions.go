package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/placement/internal/domain"
)

// Action names a lifecycle transition.
type Action string

const (
	ActionCreate             Action = "create"
	ActionActivate           Action = "activate"
	ActionReactivateWithPlan Action = "reactivate_with_plan"
	ActionRegisterPayment    Action = "register_payment"
	ActionCancel             Action = "cancel"
	ActionCancelDirect       Action = "cancel_direct"
	ActionOpenReplacement    Action = "open_replacement"
	ActionResolveReplacement Action = "resolve_replacement"
	ActionMarkPublished      Action = "mark_published"
)

// rule is one row of the transition table. An empty to leaves the state
// unchanged.
type rule struct {
	from []domain.RequestState
	to   domain.RequestState
}

var nonTerminal = []domain.RequestState{
	domain.RequestInProcess,
	domain.RequestActive,
	domain.RequestReplacement,
}

var transitions = map[Action]rule{
	ActionActivate:           {from: []domain.RequestState{domain.RequestInProcess}, to: domain.RequestActive},
	ActionReactivateWithPlan: {from: nonTerminal, to: domain.RequestActive},
	ActionRegisterPayment:    {from: nonTerminal, to: domain.RequestPaid},
	ActionCancel:             {from: nonTerminal, to: domain.RequestCancelled},
	ActionCancelDirect:       {from: []domain.RequestState{domain.RequestInProcess}, to: domain.RequestCancelled},
	ActionOpenReplacement:    {from: nonTerminal, to: domain.RequestReplacement},
	ActionMarkPublished:      {from: []domain.RequestState{domain.RequestActive, domain.RequestReplacement}},
}

// Actions lists the actions accepted by Transition, in table order.
var Actions = []Action{
	ActionActivate,
	ActionReactivateWithPlan,
	ActionRegisterPayment,
	ActionCancel,
	ActionCancelDirect,
	ActionOpenReplacement,
	ActionMarkPublished,
}

// ParseAction converts user input into a table action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := transitions[a]; !ok {
		return "", domain.NewValidationError("action", fmt.Sprintf("unknown action %q", s))
	}
	return a, nil
}

// guard returns the state r moves to under action, or an invalid-transition
// error when the table does not allow the action from r's state.
func guard(r domain.Request, action Action) (domain.RequestState, error) {
	t, ok := transitions[action]
	if !ok {
		return "", domain.NewValidationError("action", fmt.Sprintf("unknown action %q", action))
	}
	if !slices.Contains(t.from, r.State) {
		return "", domain.NewTransitionError(r.Code, string(action), r.State)
	}
	if t.to == "" {
		return r.State, nil
	}
	return t.to, nil
}

// Allowed reports the actions the table permits from state, in table order.
func Allowed(state domain.RequestState) []Action {
	var allowed []Action
	for _, a := range Actions {
		if slices.Contains(transitions[a].from, state) {
			allowed = append(allowed, a)
		}
	}
	return allowed
}
