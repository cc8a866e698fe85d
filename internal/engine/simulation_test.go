package engine

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-farm/internal/config"
	"github.com/talgya/mini-farm/internal/crops"
	"github.com/talgya/mini-farm/internal/economy"
)

func newSim(seed uint64) *Simulation {
	return New(Options{Balance: config.Default(), Seed: seed})
}

func steps(s *Simulation, n int, d time.Duration) {
	for i := 0; i < n; i++ {
		s.Advance(d)
	}
}

func TestNewFarm(t *testing.T) {
	s := newSim(1)

	assert.Equal(t, 50000.0, s.Wallet.Balance())
	assert.Zero(t, s.Now())
	assert.Empty(t, s.Crops.Plots())
	assert.Empty(t, s.Livestock.Animals())
	assert.Empty(t, s.Machinery.Machines())

	contracts := s.Market.Contracts()
	assert.GreaterOrEqual(t, len(contracts), 2)
	assert.LessOrEqual(t, len(contracts), 4)
	assert.Len(t, s.Events(), len(contracts))
}

func TestCropToMarket(t *testing.T) {
	s := newSim(2)
	plot := crops.Coord{X: 0, Y: 0}

	require.NoError(t, s.Crops.Plant(plot, "wheat"))
	assert.Equal(t, 49900.0, s.Wallet.Balance())
	assert.Equal(t, 100.0, s.Finance.Expenses()[economy.CategorySeeds])

	steps(s, 5, time.Second)
	c, ok := s.Crops.Crop(plot)
	require.True(t, ok)
	require.True(t, c.Ready)

	yield, err := s.Crops.Harvest(plot)
	require.NoError(t, err)
	require.Positive(t, yield)
	assert.Equal(t, yield, s.Market.Available("wheat"))

	revenue, err := s.Market.Sell("wheat", yield)
	require.NoError(t, err)
	assert.Positive(t, revenue)
	assert.InDelta(t, 49900+revenue, s.Wallet.Balance(), 1e-6)
	assert.Equal(t, revenue, s.Finance.Revenues()[economy.CategoryCropSales])
	assert.Zero(t, s.Market.Available("wheat"))
}

func TestMachineWorksTheField(t *testing.T) {
	s := newSim(3)
	plot := crops.Coord{X: 1, Y: 2}

	require.NoError(t, s.Crops.Plant(plot, "corn"))
	id, err := s.Machinery.Buy("tractor")
	require.NoError(t, err)

	_, err = s.Machinery.Use(id, "planting")
	require.NoError(t, err)

	c, _ := s.Crops.Crop(plot)
	assert.InDelta(t, 1.2, c.Condition, 1e-9)
	assert.Equal(t, 15.0, s.Finance.Expenses()[economy.CategoryFuel])
	assert.Equal(t, 25000.0, s.Finance.Expenses()[economy.CategoryConstruction])
	assert.Equal(t, 50000.0-150-25000-15, s.Wallet.Balance())
}

func TestProcessingDrainsProducers(t *testing.T) {
	s := newSim(4)
	for x := 0; x < 4; x++ {
		require.NoError(t, s.Crops.Plant(crops.Coord{X: x}, "wheat"))
	}
	steps(s, 5, time.Second)
	total := 0.0
	for x := 0; x < 4; x++ {
		y, err := s.Crops.Harvest(crops.Coord{X: x})
		require.NoError(t, err)
		total += y
	}

	id, err := s.Processing.Build("mill")
	require.NoError(t, err)
	require.NoError(t, s.Processing.Start(id, "wheat", total))
	assert.Zero(t, s.Crops.Inventory().Get("wheat"))

	steps(s, 2, time.Second)
	assert.InDelta(t, economy.Round(total*0.8, 2), s.Market.Available("flour"), 1e-9)
}

func TestHazards(t *testing.T) {
	s := newSim(5)
	h := hazards{s}
	plot := crops.Coord{}
	require.NoError(t, s.Crops.Plant(plot, "soybean"))
	id, err := s.Machinery.Buy("tractor")
	require.NoError(t, err)
	cash := s.Wallet.Balance()

	h.EmergencyIrrigation(500)
	assert.Equal(t, cash-500, s.Wallet.Balance())
	assert.Equal(t, 500.0, s.Finance.Expenses()[economy.CategoryUtilities])

	h.FrostDamage(0.3)
	c, _ := s.Crops.Crop(plot)
	assert.InDelta(t, 0.7, c.Condition, 1e-9)

	h.MachineDamage(1)
	m, _ := s.Machinery.Machine(id)
	assert.GreaterOrEqual(t, m.Durability, 70.0)
	assert.LessOrEqual(t, m.Durability, 90.0)

	h.OperationSlowdown(0.5, time.Hour)
	res, err := s.Machinery.Use(id, "plowing")
	require.NoError(t, err)
	assert.InDelta(t, 0.5*res.WeatherMultiplier*1.5, res.Efficiency, 1e-9)

	s.Wallet.Set(100)
	h.EmergencyIrrigation(500)
	assert.Equal(t, 100.0, s.Wallet.Balance())
	last := s.Events()[len(s.Events())-1]
	assert.Equal(t, "weather", last.Category)
	assert.Contains(t, last.Description, "could not afford")
}

func TestEventLogIsBounded(t *testing.T) {
	s := newSim(6)
	s.events = nil
	for i := 0; i < MaxEvents+500; i++ {
		s.Emit("test", fmt.Sprintf("event %d", i))
	}

	events := s.Events()
	require.Len(t, events, MaxEvents)
	assert.Equal(t, "event 500", events[0].Description)

	recent := s.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, fmt.Sprintf("event %d", MaxEvents+499), recent[2].Description)
	assert.Nil(t, s.Recent(0))
}

func TestDailyReportAndFixedCosts(t *testing.T) {
	s := newSim(7)
	steps(s, 25, time.Hour)

	assert.Equal(t, 24*time.Hour, s.lastDaily)
	assert.Equal(t, 50.0, s.Finance.Expenses()[economy.CategoryUtilities]-irrigation(s))
}

// irrigation sums what droughts cost during a test run.
func irrigation(s *Simulation) float64 {
	total := 0.0
	for _, tx := range s.Finance.Transactions() {
		if tx.Description == "emergency irrigation" {
			total += tx.Amount
		}
	}
	return total
}

// play drives a farm through a fixed script of actions and time.
func play(t *testing.T, s *Simulation, frames int) {
	t.Helper()
	for i := 0; i < frames; i++ {
		s.Advance(500 * time.Millisecond)
		if i%10 == 0 {
			_, _ = s.Livestock.FeedAll()
		}
		for _, c := range s.Crops.Plots() {
			if c.Ready {
				_, err := s.Crops.Harvest(c.Coord)
				require.NoError(t, err)
				_ = s.Crops.Plant(c.Coord, c.Kind)
			}
		}
		if i%25 == 0 {
			for _, m := range s.Machinery.Machines() {
				_, _ = s.Machinery.Use(m.ID, "plowing")
			}
			if have := s.Market.Available("corn"); have > 1 {
				_, _ = s.Market.Sell("corn", have/2)
			}
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	original := newSim(42)
	require.NoError(t, original.Crops.Plant(crops.Coord{X: 0}, "corn"))
	require.NoError(t, original.Crops.Plant(crops.Coord{X: 1}, "wheat"))
	_, err := original.Livestock.Buy("chicken")
	require.NoError(t, err)
	_, err = original.Livestock.Buy("cow")
	require.NoError(t, err)
	_, err = original.Machinery.Buy("tractor")
	require.NoError(t, err)
	play(t, original, 60)

	snap, err := original.Snapshot()
	require.NoError(t, err)
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var saved Snapshot
	require.NoError(t, json.Unmarshal(raw, &saved))
	restored := newSim(42)
	require.NoError(t, restored.Restore(saved))

	again, err := restored.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snap, again)

	play(t, original, 200)
	play(t, restored, 200)

	want, err := original.Snapshot()
	require.NoError(t, err)
	got, err := restored.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, original.Wallet.Balance(), restored.Wallet.Balance())
}

func TestRestoreRejectsUnknownVersion(t *testing.T) {
	s := newSim(1)
	snap, err := s.Snapshot()
	require.NoError(t, err)

	snap.Version = SnapshotVersion + 1
	assert.Error(t, s.Restore(snap))
}
