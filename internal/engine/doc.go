// Package engine implements the request lifecycle, the replacement tracker
// and the daily publication rule.
//
// Every operation runs in one store transaction:
//
//  1. Load the request and check the action against the transition table.
//  2. Apply the mutation and advance the request's version.
//  3. Append a RequestEvent to the request's audit log.
//
// A guard violation or validation failure returns a typed domain error
// before anything is written. Callers that read a request and act on it
// later can pass the version they saw to Transition; if the stored version
// moved on, the action is rejected with an invalid-transition error.
//
// The transition table:
//
//	activate              in_process                     -> active
//	reactivate_with_plan  in_process, active, replacement -> active
//	register_payment      in_process, active, replacement -> paid
//	cancel                in_process, active, replacement -> cancelled
//	cancel_direct         in_process                     -> cancelled
//	open_replacement      in_process, active, replacement -> replacement
//	mark_published        active, replacement            -> (unchanged)
//
// paid and cancelled are terminal. Resolving the last open replacement of a
// request in state replacement moves it back to active.
package engine
