// Package clock tracks show time from an external playback timestamp that
// updates coarsely and stalls while playback is paused.
package clock

import (
	"log"
	"time"
)

const (
	DefaultInterval = 10 * time.Millisecond
	DefaultStale    = 600 * time.Millisecond
)

// Source reports seconds of playback elapsed. ok is false while the value
// is unknown.
type Source interface {
	Poll() (seconds float64, ok bool)
}

type State int

const (
	Tracking State = iota
	Extrapolating
	Paused
)

func (s State) String() string {
	switch s {
	case Tracking:
		return "tracking"
	case Extrapolating:
		return "extrapolating"
	case Paused:
		return "paused"
	}
	return "unknown"
}

type Reading struct {
	Time  float64
	State State
}

type Clock struct {
	// Interval is the sleep between polls; Stale is how long an unchanged
	// external value is extrapolated before playback counts as paused.
	Interval time.Duration
	Stale    time.Duration

	source Source
	log    *log.Logger
	now    func() time.Time
	sleep  func(time.Duration)

	current float64
	add     float64
	last    float64
	hasLast bool
	changed time.Time
	anchor  time.Time
}

func New(source Source, logger *log.Logger) *Clock {
	if logger == nil {
		logger = log.Default()
	}
	c := &Clock{
		Interval: DefaultInterval,
		Stale:    DefaultStale,
		source:   source,
		log:      logger,
		now:      time.Now,
		sleep:    time.Sleep,
	}
	c.Reset()
	return c
}

// SetTime replaces the wall clock, for tests and simulations.
func (c *Clock) SetTime(now func() time.Time, sleep func(time.Duration)) {
	c.now = now
	c.sleep = sleep
	c.Reset()
}

// Reset starts a new show: time zero, no add offset, and the current
// external value remembered as already seen.
func (c *Clock) Reset() {
	now := c.now()
	c.current = 0
	c.add = 0
	c.last, c.hasLast = c.source.Poll()
	c.changed = now
	c.anchor = now
}

func (c *Clock) Now() float64 {
	return c.current
}

// Add accumulates seconds into the offset used by Due.
func (c *Clock) Add(seconds float64) {
	c.add += seconds
}

func (c *Clock) Offset() float64 {
	return c.add
}

// Due reports whether a command scheduled at offset may run: it waits
// while offset > now - add.
func (c *Clock) Due(offset float64) bool {
	return !(offset > c.current-c.add)
}

// Remaining is the show time left before offset is due.
func (c *Clock) Remaining(offset float64) float64 {
	return offset - (c.current - c.add)
}

// Tick runs one reconciliation step. A changed external value is adopted
// as is. An unchanged or unknown value is extrapolated with wall time until
// it has been stale for Stale; after that the reading is Paused and time
// stands still, unless terminal is set, in which case extrapolation goes on.
func (c *Clock) Tick(terminal bool) Reading {
	now := c.now()
	if v, ok := c.source.Poll(); ok && (!c.hasLast || v != c.last) {
		c.current = v
		c.last, c.hasLast = v, true
		c.changed = now
		c.anchor = now
		return Reading{Time: c.current, State: Tracking}
	}
	if terminal || now.Sub(c.changed) < c.Stale {
		c.current += now.Sub(c.anchor).Seconds()
		c.anchor = now
		return Reading{Time: c.current, State: Extrapolating}
	}
	c.anchor = now
	return Reading{Time: c.current, State: Paused}
}

// WaitUntil blocks until offset is due. While paused it blocks until the
// external value changes again.
func (c *Clock) WaitUntil(offset float64, terminal bool) {
	for !c.Due(offset) {
		r := c.Tick(terminal)
		if r.State == Paused {
			c.log.Printf("PAUSED at %.2fs", r.Time)
			c.awaitChange()
			c.log.Printf("Resumed")
			continue
		}
		if c.Due(offset) {
			return
		}
		c.sleep(c.Interval)
	}
}

func (c *Clock) awaitChange() {
	for {
		if v, ok := c.source.Poll(); ok && (!c.hasLast || v != c.last) {
			return
		}
		c.sleep(c.Interval)
	}
}

// Peek polls the source without touching clock state.
func (c *Clock) Peek() (float64, bool) {
	return c.source.Poll()
}

// AwaitTrack blocks after a new track was started until the source reports
// a value other than the leftover seen before the start. It gives up and
// returns false if stop is closed first.
func (c *Clock) AwaitTrack(leftover float64, hadLeftover bool, stop <-chan struct{}) bool {
	for {
		if v, ok := c.source.Poll(); ok && v >= 0 && (!hadLeftover || v != leftover) {
			now := c.now()
			c.current = v
			c.last, c.hasLast = v, true
			c.changed = now
			c.anchor = now
			return true
		}
		select {
		case <-stop:
			return false
		default:
		}
		c.sleep(c.Interval)
	}
}
