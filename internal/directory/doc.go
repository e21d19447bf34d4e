// Package directory manages the client and candidate records that requests
// refer to.
//
// Clients own their requests; deleting a client removes them. Candidates are
// only referenced, so a candidate that was ever assigned or replaced cannot be
// deleted. Candidate state changes are free (any state may follow any other)
// but every change is attributed to an actor and appended to the state log.
package directory
