// Package harness runs scripted request lifecycle scenarios.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: replacement_cycle
//	description: "A placement fails and is replaced"
//	start: "2024-03-01T09:00:00Z"
//	setup:
//	  - op: client.register
//	    args: { code: C001, name: "Familia Pérez" }
//	flow:
//	  - op: request.create
//	    args: { client: C001, position: Nanny }
//	  - op: request.transition
//	    advance: 1h
//	    args: { request: C001-A, action: activate }
//	    expect: { outcome: OK, state: active }
//	assertions:
//	  - type: event_order
//	    request: C001-A
//	    actions: [create, activate]
//
// Requests are referenced by code, candidates by their generated code and
// clients by client code. Replacements are referenced by numeric ID, which
// starts at 1 in every run.
//
// # Assertion Types
//
//   - request_state: a request is in the given state
//   - candidate_state: a candidate is in the given state
//   - event_order: a request's event actions equal the list exactly
//   - event_count: an action appears exactly count times in a request's events
//   - eligible: the eligible publication list at the current clock, in order
//   - history: a request's placement history as "label: candidate name"
//
// # Determinism
//
// Each run uses a fresh database file, a fixed clock that only moves when a
// step says advance, and sequential event IDs. The same scenario always
// yields the same trace, which RunWithGolden compares against
// testdata/golden.
package harness
