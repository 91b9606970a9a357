// Package debounce delays a task until input activity pauses.
package debounce

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDelay is the pause required after the last keystroke.
const DefaultDelay = 300 * time.Millisecond

// Debouncer holds at most one pending task. Scheduling a new task cancels the
// pending one before it is dispatched. A task that has already started is not
// interrupted.
type Debouncer struct {
	delay time.Duration
	clock clockwork.Clock

	mu    sync.Mutex
	timer clockwork.Timer
	gen   uint64
}

// New creates a Debouncer. A nil clock uses real time.
func New(delay time.Duration, clock clockwork.Clock) *Debouncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Debouncer{delay: delay, clock: clock}
}

// Schedule cancels any pending task and runs fn once delay elapses without
// another call. It reports whether a pending task was cancelled.
func (d *Debouncer) Schedule(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	cancelled := d.cancelLocked()
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// A Schedule or Cancel that raced with expiry wins.
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
	return cancelled
}

// Cancel drops the pending task, if any, and reports whether there was one.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

// Pending reports whether a task is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) cancelLocked() bool {
	d.gen++
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}
