// Package debounce coalesces bursts of calls per key into one delayed call.
package debounce

import (
	"sync"
	"time"
)

type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*entry
	stopped bool
}

type entry struct {
	timer *time.Timer
	fn    func()
}

func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay, pending: make(map[string]*entry)}
}

// Trigger schedules fn for key after the quiet period, replacing any call
// already pending for the same key.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if e, ok := d.pending[key]; ok {
		e.timer.Stop()
	}

	e := &entry{fn: fn}
	e.timer = time.AfterFunc(d.delay, func() { d.fire(key, e) })
	d.pending[key] = e
}

func (d *Debouncer) fire(key string, e *entry) {
	d.mu.Lock()
	if d.pending[key] != e {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	e.fn()
}

// Cancel drops the pending call for key. It reports whether one was pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(d.pending, key)
	return true
}

// Flush runs the pending call for key now, on the caller's goroutine.
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()
	e, ok := d.pending[key]
	if ok {
		e.timer.Stop()
		delete(d.pending, key)
	}
	d.mu.Unlock()

	if ok {
		e.fn()
	}
	return ok
}

// FlushMatching runs every pending call whose key satisfies match.
func (d *Debouncer) FlushMatching(match func(key string) bool) int {
	d.mu.Lock()
	var fns []func()
	for k, e := range d.pending {
		if match(k) {
			e.timer.Stop()
			delete(d.pending, k)
			fns = append(fns, e.fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// CancelMatching drops every pending call whose key satisfies match.
func (d *Debouncer) CancelMatching(match func(key string) bool) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for k, e := range d.pending {
		if match(k) {
			e.timer.Stop()
			delete(d.pending, k)
			n++
		}
	}
	return n
}

func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Stop cancels everything pending and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for k, e := range d.pending {
		e.timer.Stop()
		delete(d.pending, k)
	}
}
