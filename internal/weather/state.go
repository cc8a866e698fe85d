package weather

import (
	"time"

	"github.com/ojrac/opensimplex-go"

	"github.com/talgya/mini-farm/internal/catalog"
)

// State is the persisted form of the weather engine.
type State struct {
	Current       Snapshot       `json:"current"`
	Remaining     time.Duration  `json:"remaining"`
	Season        catalog.Season `json:"season"`
	SeasonElapsed time.Duration  `json:"season_elapsed"`
	Transitions   int            `json:"transitions"`
	NoiseSeed     int64          `json:"noise_seed"`
	History       []Snapshot     `json:"history"`
}

// State captures the engine for saving.
func (e *Engine) State() State {
	return State{
		Current:       e.current,
		Remaining:     e.remaining,
		Season:        e.season,
		SeasonElapsed: e.seasonElapsed,
		Transitions:   e.transitions,
		NoiseSeed:     e.noiseSeed,
		History:       e.History(),
	}
}

// Restore replaces the engine state with a saved one.
func (e *Engine) Restore(s State) {
	e.current = s.Current
	e.remaining = s.Remaining
	e.season = s.Season
	e.seasonElapsed = s.SeasonElapsed
	e.transitions = s.Transitions
	e.noiseSeed = s.NoiseSeed
	e.noise = opensimplex.NewNormalized(s.NoiseSeed)
	e.history = append([]Snapshot(nil), s.History...)
}
