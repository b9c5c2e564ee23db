// Package pool recycles the timers used by the housekeeping worker and the
// transport read deadlines.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer armed for duration d.
//
// Hand the timer back with PutTimer once it is no longer selected on.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer)
		if t.Reset(d) {
			select {
			case <-t.C:
			default:
			}
		}

		return t
	}

	return time.NewTimer(d)
}

// PutTimer stops t and returns it to the pool. t must not be used afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// WaitOrStop blocks for d or until stop is closed, whichever comes first.
// It reports true when stop was closed. A non-positive d only polls stop.
func WaitOrStop(d time.Duration, stop <-chan struct{}) bool {
	if d <= 0 {
		select {
		case <-stop:
			return true
		default:
			return false
		}
	}

	timer := GetTimer(d)
	defer PutTimer(timer)

	select {
	case <-stop:
		return true
	case <-timer.C:
		return false
	}
}
