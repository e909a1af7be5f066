package engine

import "time"

// Scheduler plants one-shot delayed callbacks. Fired callbacks must re-check
// battle state; the scheduler never cancels anything itself.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// WallClock schedules on real time.
type WallClock struct{}

func (WallClock) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
