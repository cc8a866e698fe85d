package engine

import (
	"fmt"
	"time"

	"github.com/talgya/mini-farm/internal/crops"
	"github.com/talgya/mini-farm/internal/finance"
	"github.com/talgya/mini-farm/internal/livestock"
	"github.com/talgya/mini-farm/internal/machinery"
	"github.com/talgya/mini-farm/internal/market"
	"github.com/talgya/mini-farm/internal/processing"
	"github.com/talgya/mini-farm/internal/weather"
)

// SnapshotVersion is bumped whenever Snapshot changes incompatibly.
const SnapshotVersion = 1

// Snapshot is the complete persisted state of a farm. Restoring it into a
// simulation built with the same catalog and balance reproduces identical
// subsequent behavior.
type Snapshot struct {
	Version   int           `json:"version"`
	Now       time.Duration `json:"now"`
	Cash      float64       `json:"cash"`
	Seed      uint64        `json:"seed"`
	Rand      []byte        `json:"rand"`
	LastDaily time.Duration `json:"last_daily"`
	Events    []Event       `json:"events"`

	Weather    weather.State    `json:"weather"`
	Crops      crops.State      `json:"crops"`
	Livestock  livestock.State  `json:"livestock"`
	Machinery  machinery.State  `json:"machinery"`
	Processing processing.State `json:"processing"`
	Market     market.State     `json:"market"`
	Finance    finance.State    `json:"finance"`
}

// Snapshot captures the whole farm.
func (s *Simulation) Snapshot() (Snapshot, error) {
	rng, err := s.Rand.State()
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot rng: %w", err)
	}
	return Snapshot{
		Version:    SnapshotVersion,
		Now:        s.Clock.Now(),
		Cash:       s.Wallet.Balance(),
		Seed:       s.Rand.Seed(),
		Rand:       rng,
		LastDaily:  s.lastDaily,
		Events:     s.Events(),
		Weather:    s.Weather.State(),
		Crops:      s.Crops.State(),
		Livestock:  s.Livestock.State(),
		Machinery:  s.Machinery.State(),
		Processing: s.Processing.State(),
		Market:     s.Market.State(),
		Finance:    s.Finance.State(),
	}, nil
}

// Restore replaces the farm's state with snap.
func (s *Simulation) Restore(snap Snapshot) error {
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("restore snapshot version %d (want %d)", snap.Version, SnapshotVersion)
	}
	if err := s.Rand.Restore(snap.Rand); err != nil {
		return fmt.Errorf("restore rng: %w", err)
	}
	s.Clock.Set(snap.Now)
	s.Wallet.Set(snap.Cash)
	s.lastDaily = snap.LastDaily
	s.events = make([]Event, len(snap.Events))
	copy(s.events, snap.Events)

	s.Weather.Restore(snap.Weather)
	s.Crops.Restore(snap.Crops)
	s.Livestock.Restore(snap.Livestock)
	s.Machinery.Restore(snap.Machinery)
	s.Processing.Restore(snap.Processing)
	s.Market.Restore(snap.Market)
	s.Finance.Restore(snap.Finance)
	return nil
}
