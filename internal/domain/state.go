package domain

import "fmt"

// SystemActor attributes changes made by the system rather than a person.
const SystemActor = "system"

// RequestState is the lifecycle state of a Request.
type RequestState string

const (
	RequestInProcess   RequestState = "in_process"
	RequestActive      RequestState = "active"
	RequestPaid        RequestState = "paid"
	RequestCancelled   RequestState = "cancelled"
	RequestReplacement RequestState = "replacement"
)

// RequestStates lists every request state in lifecycle order.
var RequestStates = []RequestState{
	RequestInProcess,
	RequestActive,
	RequestPaid,
	RequestCancelled,
	RequestReplacement,
}

// Terminal reports whether no ordinary transition leaves the state.
func (s RequestState) Terminal() bool {
	return s == RequestPaid || s == RequestCancelled
}

// Valid reports whether s is a known request state.
func (s RequestState) Valid() bool {
	for _, known := range RequestStates {
		if s == known {
			return true
		}
	}
	return false
}

// ParseRequestState converts user input into a RequestState.
func ParseRequestState(s string) (RequestState, error) {
	st := RequestState(s)
	if !st.Valid() {
		return "", NewValidationError("state", fmt.Sprintf("unknown request state %q", s))
	}
	return st, nil
}

// CandidateState is the enrollment state of a Candidate.
//
// Candidate states form a free transition set: any state can follow any
// other, provided the change is attributed to an actor.
type CandidateState string

const (
	CandidateInProcess           CandidateState = "in_process"
	CandidateEnrollmentInProcess CandidateState = "enrollment_in_process"
	CandidateEnrolled            CandidateState = "enrolled"
	CandidateEnrolledIncomplete  CandidateState = "enrolled_incomplete"
	CandidateReadyToWork         CandidateState = "ready_to_work"
	CandidateWorking             CandidateState = "working"
	CandidateDisqualified        CandidateState = "disqualified"
)

// CandidateStates lists every candidate state.
var CandidateStates = []CandidateState{
	CandidateInProcess,
	CandidateEnrollmentInProcess,
	CandidateEnrolled,
	CandidateEnrolledIncomplete,
	CandidateReadyToWork,
	CandidateWorking,
	CandidateDisqualified,
}

// Valid reports whether s is a known candidate state.
func (s CandidateState) Valid() bool {
	for _, known := range CandidateStates {
		if s == known {
			return true
		}
	}
	return false
}

// Selectable reports whether a candidate in this state may be assigned to a
// request.
func (s CandidateState) Selectable() bool {
	return s != CandidateDisqualified
}

// ParseCandidateState converts user input into a CandidateState.
func ParseCandidateState(s string) (CandidateState, error) {
	st := CandidateState(s)
	if !st.Valid() {
		return "", NewValidationError("state", fmt.Sprintf("unknown candidate state %q", s))
	}
	return st, nil
}

// Modality is how a placement is worked. The zero value means the client
// has not said.
type Modality string

const (
	ModalityUnset   Modality = ""
	ModalityLiveIn  Modality = "live_in"
	ModalityLiveOut Modality = "live_out"
	ModalityHourly  Modality = "hourly"
)

// ParseModality resolves the modality once, at the input boundary. Empty
// input yields ModalityUnset.
func ParseModality(s string) (Modality, error) {
	switch m := Modality(s); m {
	case ModalityUnset, ModalityLiveIn, ModalityLiveOut, ModalityHourly:
		return m, nil
	default:
		return "", NewValidationError("modality", fmt.Sprintf("unknown modality %q", s))
	}
}

// Plan is the commercial plan attached to a request.
type Plan string

const (
	PlanNone     Plan = ""
	PlanBasic    Plan = "basic"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// ParsePlan converts user input into a Plan. Unlike modality, a plan must be
// named explicitly.
func ParsePlan(s string) (Plan, error) {
	switch p := Plan(s); p {
	case PlanBasic, PlanStandard, PlanPremium:
		return p, nil
	default:
		return "", NewValidationError("plan", fmt.Sprintf("unknown plan %q", s))
	}
}
