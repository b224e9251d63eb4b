// Package debounce coalesces bursts of triggers into a single deferred call.
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow is the coalescing window used when none is specified.
const DefaultWindow = 100 * time.Millisecond

// Debouncer defers a call until no new trigger arrived for a fixed window.
//
// A new trigger supersedes the pending call: only the most recent function runs.
// Calls run on a timer goroutine, one at a time.
type Debouncer struct {
	mu      sync.Mutex
	run     sync.Mutex
	window  time.Duration
	timer   *time.Timer
	pending func()
	gen     uint64
}

// New builds a [Debouncer] with the given window. A non-positive window means [DefaultWindow].
func New(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}

	return &Debouncer{window: window}
}

// Window returns the coalescing window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Trigger schedules fn to run after the window, replacing any pending call.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	d.pending = fn
	gen := d.gen

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.window, func() {
		d.fire(gen)
	})
}

// Flush runs the pending call immediately, if any. It reports whether a call was run.
func (d *Debouncer) Flush() bool {
	fn := d.take(0)
	if fn == nil {
		return false
	}

	d.exec(fn)

	return true
}

// Stop cancels the pending call, if any. It reports whether a call was cancelled.
func (d *Debouncer) Stop() bool {
	return d.take(0) != nil
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pending != nil
}

func (d *Debouncer) fire(gen uint64) {
	fn := d.take(gen)
	if fn == nil {
		return
	}

	d.exec(fn)
}

// take removes the pending call. With a non-zero gen, only the call of that generation is taken.
func (d *Debouncer) take(gen uint64) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != 0 && gen != d.gen {
		return nil
	}

	fn := d.pending
	d.pending = nil

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	return fn
}

func (d *Debouncer) exec(fn func()) {
	d.run.Lock()
	defer d.run.Unlock()

	fn()
}
