package util

import "time"

// Clock abstracts wall time. Session windows, cool-downs and settlement
// eligibility are all plain comparisons against Now(), so tests drive them
// with a fake clock instead of sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RealClock delegates to the time package.
type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

var _ Clock = RealClock{}
