// Package pool provides pooled time.Timer helpers.
//
// Command exchanges, probes and flush loops all carry short timeouts;
// pooling the timers avoids allocating one per exchange.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer for the given duration d from the pool.
//
// Return the timer to the pool with PutTimer when done.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer) // only *time.Timer values are ever put into the pool
		if t.Reset(d) {
			// Timer was active, drain the channel to prevent a stale fire.
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	return time.NewTimer(d)
}

// PutTimer returns timer to the pool.
//
// t must not be accessed after returning it to the pool.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// Drain t.C if the caller has not consumed the fire yet.
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}
