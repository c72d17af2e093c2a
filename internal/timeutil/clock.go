// Package timeutil abstracts timer creation so debounce and retry timing
// can be driven deterministically in tests instead of depending on real
// timers.
package timeutil

import "time"

// Clock creates timers and reports the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run in its own goroutine after d.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the timer. Returns false if the callback already fired
	// or was stopped before.
	Stop() bool
}

// realClock delegates to the time package.
type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Real returns the wall-clock implementation.
func Real() Clock {
	return realClock{}
}
