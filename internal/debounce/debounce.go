// Package debounce provides a coalescing-window debouncer.
//
// A Debouncer suppresses repeated triggers that arrive inside a fixed
// window: the first trigger runs, later triggers within the window are
// dropped. This is used to collapse duplicate MQTT command deliveries
// (retained-message replay, UI double-submission) and to pace peripheral
// notification fan-out.
package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces repeated triggers into at most one invocation per
// window.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Debouncer struct {
	window time.Duration

	mu   sync.Mutex
	last time.Time

	// now is the clock source, replaceable in tests.
	now func() time.Time
}

// New creates a Debouncer with the given coalescing window.
// A zero or negative window disables debouncing (every trigger runs).
func New(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		now:    time.Now,
	}
}

// Do invokes fn unless a previous invocation was accepted within the
// window. Returns true if fn ran, false if the trigger was coalesced.
//
// fn runs on the caller's goroutine while the debouncer is unlocked, so
// a slow fn does not block concurrent Do calls from deciding.
func (d *Debouncer) Do(fn func()) bool {
	if d.window <= 0 {
		fn()
		return true
	}

	d.mu.Lock()
	now := d.now()
	if !d.last.IsZero() && now.Sub(d.last) < d.window {
		d.mu.Unlock()
		return false
	}
	d.last = now
	d.mu.Unlock()

	fn()
	return true
}

// Reset clears the last-invocation timestamp so the next trigger runs
// immediately.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	d.last = time.Time{}
	d.mu.Unlock()
}

// SetClock replaces the clock source. Intended for tests.
func (d *Debouncer) SetClock(now func() time.Time) {
	d.mu.Lock()
	d.now = now
	d.mu.Unlock()
}
