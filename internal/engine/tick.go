// Package engine wires the farm subsystems into one Simulation and drives
// it with a real-time frame loop.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Engine drives a Simulation forward in real time. Every frame the wall
// time since the previous frame, scaled by the speed multiplier, becomes
// simulated elapsed time.
type Engine struct {
	Interval      time.Duration // wall time between frames
	AutosaveEvery time.Duration // simulated time between OnAutosave calls; 0 disables

	// Callbacks run on the loop goroutine with the simulation locked.
	OnFrame    func(frame uint64, sim *Simulation)
	OnAutosave func(sim *Simulation)

	mu           sync.Mutex
	sim          *Simulation
	speed        float64
	paused       bool
	frame        uint64
	lastAutosave time.Duration
}

// NewEngine creates an engine for sim running at real-time speed.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{
		Interval:     100 * time.Millisecond,
		sim:          sim,
		speed:        1,
		lastAutosave: sim.Now(),
	}
}

// Run runs frames until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("simulation engine started", "time", SimTime(e.sim.Now()), "speed", e.Speed())

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "frame", e.Frame(), "time", SimTime(e.sim.Now()))
			return nil
		case now := <-ticker.C:
			e.Step(now.Sub(last))
			last = now
		}
	}
}

// Step runs one frame covering wall elapsed time.
func (e *Engine) Step(wall time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.frame++
	if !e.paused && e.speed > 0 && wall > 0 {
		e.sim.Advance(time.Duration(float64(wall) * e.speed))
	}
	if e.OnFrame != nil {
		e.OnFrame(e.frame, e.sim)
	}
	now := e.sim.Now()
	if e.AutosaveEvery > 0 && e.OnAutosave != nil && now-e.lastAutosave >= e.AutosaveEvery {
		e.lastAutosave = now
		e.OnAutosave(e.sim)
	}
}

// Do runs fn with exclusive access to the simulation.
func (e *Engine) Do(fn func(sim *Simulation)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sim)
}

// SetSpeed changes the time multiplier. Non-positive speeds pause.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if speed <= 0 {
		e.paused = true
		return
	}
	e.speed = speed
	e.paused = false
	slog.Info("simulation speed changed", "speed", speed)
}

// Speed returns the time multiplier, or 0 while paused.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return 0
	}
	return e.speed
}

func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Frame returns the number of frames run so far.
func (e *Engine) Frame() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}
