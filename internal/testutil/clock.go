package testutil

import (
	"sync"
	"time"
)

// StepClock is a test clock that advances by a fixed step on every read.
//
// Each call to Now returns the previous reading plus Step, so a scheduler tick
// that reads the clock twice (tick start, tick end) observes exactly one step
// of elapsed time. This keeps telemetry Elapsed values and tick timestamps
// deterministic in golden traces.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu     sync.Mutex
	origin time.Time
	now    time.Time
	step   time.Duration
}

// NewStepClock creates a clock starting at origin that advances by step.
//
// A zero origin defaults to the Unix epoch. The first call to Now returns
// origin+step.
func NewStepClock(origin time.Time, step time.Duration) *StepClock {
	if origin.IsZero() {
		origin = time.Unix(0, 0).UTC()
	}
	return &StepClock{origin: origin, now: origin, step: step}
}

// Now advances the clock by one step and returns the new time.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Peek returns the current time without advancing.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d without counting as a read.
func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Reset rewinds the clock to its origin.
//
// Used for test reuse. After Reset, the next call to Now returns origin+step.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.origin
}
