// Package system provides a real clock implementation.
package system

import "time"

// Clock implements catalog.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time. Persisted created_at/updated_at stamps
// all come from here, so rows compare consistently regardless of host zone.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
