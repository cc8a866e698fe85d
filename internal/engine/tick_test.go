package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepScalesBySpeed(t *testing.T) {
	e := NewEngine(newSim(1))

	e.Step(time.Second)
	assert.Equal(t, time.Second, e.sim.Now())

	e.SetSpeed(3)
	e.Step(time.Second)
	assert.Equal(t, 4*time.Second, e.sim.Now())
	assert.Equal(t, 3.0, e.Speed())
	assert.Equal(t, uint64(2), e.Frame())
}

func TestPause(t *testing.T) {
	e := NewEngine(newSim(1))

	e.Pause()
	e.Step(time.Second)
	assert.Zero(t, e.sim.Now())
	assert.True(t, e.Paused())
	assert.Zero(t, e.Speed())

	e.Resume()
	e.Step(time.Second)
	assert.Equal(t, time.Second, e.sim.Now())

	e.SetSpeed(0)
	assert.True(t, e.Paused())
	e.SetSpeed(2)
	assert.False(t, e.Paused())
	assert.Equal(t, 2.0, e.Speed())
}

func TestCallbacks(t *testing.T) {
	e := NewEngine(newSim(1))
	e.AutosaveEvery = 5 * time.Second

	var frames []uint64
	var saves []time.Duration
	e.OnFrame = func(frame uint64, _ *Simulation) { frames = append(frames, frame) }
	e.OnAutosave = func(sim *Simulation) { saves = append(saves, sim.Now()) }

	for i := 0; i < 12; i++ {
		e.Step(time.Second)
	}
	assert.Len(t, frames, 12)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, saves)
}

func TestRunStopsOnCancel(t *testing.T) {
	e := NewEngine(newSim(1))
	e.Interval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	assert.Positive(t, e.Frame())
	var now time.Duration
	e.Do(func(sim *Simulation) { now = sim.Now() })
	assert.Positive(t, now)
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, "Day 1, 0:00:00", SimTime(0))
	assert.Equal(t, "Day 2, 1:02:03", SimTime(25*time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "Day 1, 0:00:00", SimTime(-time.Second))
}
