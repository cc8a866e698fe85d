// Package livestock simulates the farm's animals: aging, feeding, health,
// production, breeding and death.
package livestock

import "time"

// AnimalID is a unique animal identifier. IDs are never reused.
type AnimalID uint64

// Stage is the lifecycle state of an animal.
type Stage uint8

const (
	Juvenile Stage = iota
	Mature
	Pregnant
	Dead
)

func (s Stage) String() string {
	switch s {
	case Juvenile:
		return "juvenile"
	case Mature:
		return "mature"
	case Pregnant:
		return "pregnant"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// Animal is one head of livestock. Age is derived from BoughtAt.
type Animal struct {
	ID             AnimalID           `json:"id"`
	Kind           string             `json:"kind"`
	BoughtAt       time.Duration      `json:"bought_at"`
	Health         float64            `json:"health"` // [0, 100]
	Mature         bool               `json:"mature"`
	Alive          bool               `json:"alive"`
	LastFed        time.Duration      `json:"last_fed"`
	LastProduction time.Duration      `json:"last_production"`
	Pregnant       bool               `json:"pregnant"`
	GestationStart time.Duration      `json:"gestation_start"`
	Produced       map[string]float64 `json:"produced"`
}

// Stage derives the lifecycle state.
func (a Animal) Stage() Stage {
	switch {
	case !a.Alive:
		return Dead
	case a.Pregnant:
		return Pregnant
	case a.Mature:
		return Mature
	default:
		return Juvenile
	}
}

// AgeDays returns the animal's age in farm days at now.
func (a Animal) AgeDays(now, day time.Duration) float64 {
	return float64(now-a.BoughtAt) / float64(day)
}

func (a Animal) clone() Animal {
	c := a
	c.Produced = make(map[string]float64, len(a.Produced))
	for k, v := range a.Produced {
		c.Produced[k] = v
	}
	return c
}
