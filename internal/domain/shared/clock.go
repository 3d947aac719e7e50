package shared

import "time"

// Clock supplies the current time. Status derivation depends on "today",
// so everything that resolves statuses takes a Clock instead of calling time.Now.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in the configured location (local when nil)
func (c SystemClock) Now() time.Time {
	if c.Location != nil {
		return time.Now().In(c.Location)
	}
	return time.Now()
}

// FixedClock always returns the same instant. Used by tests and replays.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant
func (c FixedClock) Now() time.Time {
	return c.T
}

// Today truncates t to midnight in its own location
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
