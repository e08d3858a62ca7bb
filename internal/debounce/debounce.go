// Package debounce coalesces rapidly-changing values: the emit callback
// fires with the latest value once no new value has arrived for the
// configured window. Used to keep editor keystrokes from flooding the room.
package debounce

import (
	"sync"
	"time"
)

type Debouncer struct {
	window time.Duration
	emit   func(string)

	mu      sync.Mutex
	timer   *time.Timer
	latest  string
	pending bool
	stopped bool
}

func New(window time.Duration, emit func(string)) *Debouncer {
	return &Debouncer{
		window: window,
		emit:   emit,
	}
}

// Send records a new value and restarts the window. Any value recorded
// earlier in the same window is discarded unseen.
func (d *Debouncer) Send(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.latest = value
	d.pending = true

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if !d.pending || d.stopped {
		d.mu.Unlock()
		return
	}
	value := d.latest
	d.pending = false
	d.mu.Unlock()

	d.emit(value)
}

// Flush emits the pending value immediately, if any
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	d.fire()
}

// Stop cancels any pending emission. The debouncer is unusable afterwards.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}
