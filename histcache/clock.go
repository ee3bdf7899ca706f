package histcache

import "time"

// clock abstracts timer creation so the debounce state machine can be
// driven synchronously in tests instead of waiting on wall-clock time.
type clock interface {
	// AfterFunc schedules fn to run in its own goroutine after d elapses
	// and returns a handle that can cancel the call.
	AfterFunc(d time.Duration, fn func()) stopper
}

// stopper cancels a scheduled timer. Stop reports whether the call was
// prevented from running; a false return means the timer already fired or
// was stopped.
type stopper interface {
	Stop() bool
}

// systemClock is the production clock backed by the time package.
type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, fn func()) stopper {
	return time.AfterFunc(d, fn)
}
