// Package store provides SQLite-backed durable storage for clients,
// candidates, requests, replacements and the request audit log.
//
// Every core operation runs inside one transaction obtained from InTx or
// Read. Requests carry a version column; UpdateRequest only succeeds when the
// stored version still matches the one the caller read.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: Take the write lock at BEGIN
//
// Driver errors never leave this package raw. They are classified into
// domain errors: constraint failures become integrity conflicts, missing rows
// become not-found errors, and everything else is StoreUnavailable.
package store
