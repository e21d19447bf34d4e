package engine

import "time"

// Clock supplies wall time for record timestamps.
// Implemented by SystemClock (production) and testutil.FixedClock (tests).
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system wall clock in UTC.
//
// Thread-safety: SystemClock is stateless and safe for concurrent use.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
