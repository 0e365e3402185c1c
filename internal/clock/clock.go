// Package clock provides wall-clock sources for the tick scheduler.
//
// The scheduler never calls time.Now directly. Everything that needs a
// timestamp (tick time, elapsed measurement, drift compensation) goes through
// a Clock so simulations can be seeded and tests can step time explicitly.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// System is the process wall clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// Deterministic is a clock anchored at a fixed origin that advances with the
// process monotonic clock.
//
// Two Deterministic clocks seeded with the same origin report identical
// timestamps for identical elapsed durations, which keeps tick timestamps
// reproducible across runs independent of the host's wall-clock setting.
//
// Thread-safety: Deterministic is immutable after construction and safe for
// concurrent use.
type Deterministic struct {
	origin time.Time
	start  time.Time
}

// NewDeterministic creates a clock starting at origin.
// A zero origin defaults to the Unix epoch (UTC).
func NewDeterministic(origin time.Time) *Deterministic {
	if origin.IsZero() {
		origin = time.Unix(0, 0).UTC()
	}
	return &Deterministic{
		origin: origin,
		start:  time.Now(),
	}
}

// Now returns origin plus the monotonic time elapsed since construction.
func (c *Deterministic) Now() time.Time {
	return c.origin.Add(time.Since(c.start))
}

// Origin returns the configured origin.
func (c *Deterministic) Origin() time.Time {
	return c.origin
}
