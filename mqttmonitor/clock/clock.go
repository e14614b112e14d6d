// Package clock abstracts wall-clock reads so time-driven policies can be
// tested with a manipulable clock.
package clock

import "time"

// Clock tells the time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// New returns a Clock backed by time.Now.
func New() Clock {
	return realClock{}
}

type realClock struct{}

// Now returns time.Now, so it keeps the monotonic reading used for elapsed
// time comparisons.
func (realClock) Now() time.Time {
	return time.Now()
}
