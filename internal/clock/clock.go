// Package clock supplies simulated time to the farm subsystems.
//
// Simulated time is an offset from the start of a game, expressed as a
// time.Duration. Nothing in the core reads the wall clock; the driver
// advances a Sim clock by the elapsed time of each frame.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current simulated time.
type Clock interface {
	Now() time.Duration
}

// Sim is a manually advanced clock. It is deterministic and test-friendly.
type Sim struct {
	mu  sync.Mutex
	now time.Duration
}

// NewSim returns a clock positioned at start.
func NewSim(start time.Duration) *Sim {
	return &Sim{now: start}
}

func (c *Sim) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Used when restoring a saved game.
func (c *Sim) Set(t time.Duration) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d. Negative durations are ignored so
// simulated time never runs backwards.
func (c *Sim) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now += d
	}
	return c.now
}
