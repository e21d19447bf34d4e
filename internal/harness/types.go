package harness

import "github.com/roach88/placement/internal/domain"

// OutcomeOK is the outcome recorded for a step that succeeded. Failed steps
// record the domain error kind, e.g. INVALID_TRANSITION.
const OutcomeOK = "OK"

// outcomeUnknown is recorded for errors that carry no domain kind.
const outcomeUnknown = "ERROR"

// TraceEvent is one executed step.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Op      string `json:"op"`
	Ref     string `json:"ref,omitempty"`
	Outcome string `json:"outcome"`
	State   string `json:"state,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// RequestSummary is the final state of one request, captured after the flow.
type RequestSummary struct {
	Code    string   `json:"code"`
	State   string   `json:"state"`
	Version int64    `json:"version"`
	Events  []string `json:"events"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace    []TraceEvent     `json:"trace"`
	Requests []RequestSummary `json:"requests"`

	// Errors lists failed expectations; empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Requests: []RequestSummary{},
		Errors:   []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addTrace appends a step to the trace with the next sequence number.
func (r *Result) addTrace(ev TraceEvent) TraceEvent {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
	return ev
}

// outcomeOf maps an operation error to its trace outcome.
func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if kind := domain.KindOf(err); kind != "" {
		return string(kind)
	}
	return outcomeUnknown
}
