package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDuration is the quiet period applied to change events
// before callbacks fire. A single SQLite transaction touches the file
// several times (journal, main file, WAL); debouncing collapses the burst
// into one notification.
const DefaultDebounceDuration = 200 * time.Millisecond

// Debouncer delays execution until a quiet period has passed.
type Debouncer struct {
	delay   time.Duration
	timer   *time.Timer
	mu      sync.Mutex
	pending func()
}

// NewDebouncer creates a new debouncer with the specified delay.
// A non-positive delay uses DefaultDebounceDuration.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDuration
	}
	return &Debouncer{
		delay: delay,
	}
}

// Duration returns the configured quiet period.
func (d *Debouncer) Duration() time.Duration {
	return d.delay
}

// Trigger schedules or resets the debounced function.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = fn

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		fn := d.pending
		d.pending = nil
		d.mu.Unlock()

		if fn != nil {
			fn()
		}
	})
}

// Cancel cancels any pending execution.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}

// Flush immediately executes any pending function.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}
