package clock

import (
	"fmt"
	"sync"
	"time"
)

// DefaultInterval is the countdown resolution.
const DefaultInterval = 500 * time.Millisecond

// TickFunc receives the remaining time on every tick. ok is false when no
// deadline is set.
type TickFunc func(remaining time.Duration, ok bool)

// DeadlineClock counts down to an absolute deadline. It is not a source of
// truth for expiry: the server enforces the deadline on its own.
type DeadlineClock struct {
	clock    Clock
	interval time.Duration

	mu       sync.Mutex
	deadline *time.Time
	gen      uint64
	stop     chan struct{}
}

// NewDeadlineClock creates a stopped DeadlineClock.
func NewDeadlineClock(c Clock, interval time.Duration) *DeadlineClock {
	if c == nil {
		c = System
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &DeadlineClock{clock: c, interval: interval}
}

// Set replaces the deadline. nil clears it.
func (d *DeadlineClock) Set(deadline *time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if deadline == nil {
		d.deadline = nil
		return
	}
	t := *deadline
	d.deadline = &t
}

// Deadline returns the current deadline, if any.
func (d *DeadlineClock) Deadline() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deadline == nil {
		return time.Time{}, false
	}
	return *d.deadline, true
}

// Remaining returns the time left until the deadline; it is negative once
// the deadline has passed. ok is false when no deadline is set.
func (d *DeadlineClock) Remaining() (time.Duration, bool) {
	d.mu.Lock()
	deadline := d.deadline
	d.mu.Unlock()
	if deadline == nil {
		return 0, false
	}
	return deadline.Sub(d.clock.Now()), true
}

// RemainingMillis is Remaining in whole milliseconds.
func (d *DeadlineClock) RemainingMillis() (int64, bool) {
	r, ok := d.Remaining()
	if !ok {
		return 0, false
	}
	return r.Milliseconds(), true
}

// Start begins ticking every interval, with one immediate tick so an
// already-passed deadline is noticed without waiting. Starting a running
// clock is a no-op.
func (d *DeadlineClock) Start(onTick TickFunc) {
	d.mu.Lock()
	if d.stop != nil {
		d.mu.Unlock()
		return
	}
	d.gen++
	gen := d.gen
	stop := make(chan struct{})
	d.stop = stop
	d.mu.Unlock()

	go d.run(gen, stop, onTick)
}

func (d *DeadlineClock) run(gen uint64, stop <-chan struct{}, onTick TickFunc) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.fire(gen, onTick)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.fire(gen, onTick)
		}
	}
}

// fire delivers a tick unless the clock was stopped (or restarted) since
// this goroutine was launched.
func (d *DeadlineClock) fire(gen uint64, onTick TickFunc) {
	d.mu.Lock()
	live := d.stop != nil && d.gen == gen
	d.mu.Unlock()
	if !live {
		return
	}
	remaining, ok := d.Remaining()
	onTick(remaining, ok)
}

// Stop halts ticking. It is safe to call repeatedly and from inside a tick.
func (d *DeadlineClock) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop == nil {
		return
	}
	close(d.stop)
	d.stop = nil
}

// Running reports whether the clock is ticking.
func (d *DeadlineClock) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop != nil
}

// Urgency classifies how close the deadline is, for display.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyWarning  Urgency = "warning"
	UrgencyCritical Urgency = "critical"
)

// UrgencyOf returns critical under 30s, warning under 2m, normal otherwise.
func UrgencyOf(remaining time.Duration) Urgency {
	sec := ceilSeconds(remaining)
	switch {
	case sec < 30:
		return UrgencyCritical
	case sec < 120:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

// FormatRemaining renders a countdown as m:ss, rounding partial seconds up
// and clamping at zero.
func FormatRemaining(remaining time.Duration) string {
	sec := ceilSeconds(remaining)
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
