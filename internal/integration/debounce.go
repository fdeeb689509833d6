package integration

import (
	"sync"
	"time"
)

// Debouncer provides event debouncing to prevent excessive calls.
//
// It groups rapid successive calls into a single call after a quiet period.
// This is useful for operations like git status queries or file change events.
//
// Thread-safety: All methods are safe for concurrent use. Callback runs are
// not serialized: CallImmediate runs the callback on the caller's goroutine
// and can overlap a timer-started run that is already in progress.
type Debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	timer    *time.Timer
	pending  bool
	seq      uint64 // sequence number to detect stale callbacks
	callback func()
}

// NewDebouncer creates a new debouncer with the specified delay.
//
// The callback will be invoked after no new calls have been made
// for at least 'delay' duration.
func NewDebouncer(delay time.Duration, callback func()) *Debouncer {
	return &Debouncer{
		delay:    delay,
		callback: callback,
	}
}

// Call schedules the callback to run after the debounce delay.
//
// If called multiple times within the delay period, only the last
// call's timing is used - the callback fires once after the final
// quiet period.
func (d *Debouncer) Call() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = true
	d.seq++
	currentSeq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// Only execute if this is still the current scheduled callback
		// and we're still pending
		if d.pending && d.seq == currentSeq && d.callback != nil {
			d.pending = false
			d.mu.Unlock()
			d.callback()
		} else {
			d.mu.Unlock()
		}
	})
}

// CallImmediate runs the callback immediately if there's a pending call,
// canceling any scheduled debounced call.
func (d *Debouncer) CallImmediate() {
	d.mu.Lock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	// Increment seq to invalidate any running timer callback
	d.seq++

	if d.pending && d.callback != nil {
		d.pending = false
		d.mu.Unlock()
		d.callback()
	} else {
		d.mu.Unlock()
	}
}

// Cancel cancels any pending debounced call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// Increment seq to invalidate any running timer callback
	d.seq++
	d.pending = false
}

// IsPending returns true if there's a pending debounced call.
func (d *Debouncer) IsPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Reset resets the debouncer, canceling any pending call.
func (d *Debouncer) Reset() {
	d.Cancel()
}
