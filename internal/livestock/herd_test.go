package livestock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-farm/internal/catalog"
	"github.com/talgya/mini-farm/internal/clock"
	"github.com/talgya/mini-farm/internal/config"
	"github.com/talgya/mini-farm/internal/economy"
	"github.com/talgya/mini-farm/internal/entropy"
	"github.com/talgya/mini-farm/internal/weather"
)

type fixedWeather float64

func (w fixedWeather) Multipliers() weather.Multipliers {
	m := weather.Neutral
	m.AnimalProductivity = float64(w)
	return m
}

type eventLog []string

func (e *eventLog) Emit(_, description string) { *e = append(*e, description) }

type harness struct {
	herd   *Herd
	clk    *clock.Sim
	wallet *economy.Purse
	events *eventLog
	day    time.Duration
}

func newHarness(cash float64) harness {
	clk := clock.NewSim(0)
	wallet := economy.NewPurse(cash)
	ev := &eventLog{}
	cfg := config.Default().Livestock
	h := New(Deps{
		Catalog: catalog.Default(),
		Balance: cfg,
		Clock:   clk,
		Wallet:  wallet,
		Weather: fixedWeather(1),
		Rand:    entropy.NewSeeded(17),
		Events:  ev,
	})
	return harness{herd: h, clk: clk, wallet: wallet, events: ev, day: cfg.DayLength}
}

func (h harness) advance(d time.Duration) {
	h.clk.Advance(d)
	h.herd.Tick(d)
}

// days advances n farm days one at a time, feeding the herd after each.
func (h harness) days(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		h.advance(h.day)
		_, err := h.herd.FeedAll()
		require.NoError(t, err)
	}
}

func TestCowScenario(t *testing.T) {
	h := newHarness(50000)

	id, err := h.herd.Buy("cow")
	require.NoError(t, err)
	assert.Equal(t, 48500.0, h.wallet.Balance())

	h.days(t, 30)
	cow, ok := h.herd.Animal(id)
	require.True(t, ok)
	assert.True(t, cow.Mature)
	assert.Equal(t, Mature, cow.Stage())
	assert.Equal(t, 0.0, h.herd.Inventory().Get("cow_milk"))

	interval := config.Default().Livestock.ProductionInterval
	h.days(t, int(interval/h.day))
	assert.Greater(t, h.herd.Inventory().Get("cow_milk"), 0.0)

	cow, _ = h.herd.Animal(id)
	assert.Equal(t, h.herd.Inventory().Get("cow_milk"), cow.Produced["cow_milk"])
}

func TestProductionCountsSimulatedDays(t *testing.T) {
	h := newHarness(50000)
	assert.Equal(t, time.Second, h.day)

	_, err := h.herd.Buy("cow")
	require.NoError(t, err)
	h.days(t, 30)
	require.Zero(t, h.herd.Inventory().Get("cow_milk"))

	// 25 litres a simulated day, collected every five days.
	h.days(t, 5)
	assert.InDelta(t, 125.0, h.herd.Inventory().Get("cow_milk"), 1e-9)
	h.days(t, 5)
	assert.InDelta(t, 250.0, h.herd.Inventory().Get("cow_milk"), 1e-9)
}

func TestBuyFailures(t *testing.T) {
	h := newHarness(1000)
	_, err := h.herd.Buy("llama")
	require.ErrorIs(t, err, economy.ErrUnknownKind)
	_, err = h.herd.Buy("cow")
	require.ErrorIs(t, err, economy.ErrInsufficientFunds)
	assert.Equal(t, 1000.0, h.wallet.Balance())
	assert.Empty(t, h.herd.Animals())
}

func TestFeedAllIsAtomic(t *testing.T) {
	h := newHarness(1600)
	_, err := h.herd.Buy("cow")
	require.NoError(t, err)
	_, err = h.herd.Buy("chicken")
	require.NoError(t, err)
	require.Equal(t, 50.0, h.wallet.Balance())

	h.advance(3 * h.day)
	before := h.herd.Animals()

	require.True(t, h.wallet.TrySpend(30)) // 20 left, feeding costs 27
	_, err = h.herd.FeedAll()
	require.ErrorIs(t, err, economy.ErrInsufficientFunds)
	assert.Equal(t, before, h.herd.Animals())
	assert.Equal(t, 20.0, h.wallet.Balance())

	require.NoError(t, h.herd.Feed(2))
	assert.Equal(t, 18.0, h.wallet.Balance())
	require.ErrorIs(t, h.herd.Feed(99), economy.ErrNotFound)
}

func TestHealthStaysInBounds(t *testing.T) {
	h := newHarness(1e9)
	rng := entropy.NewSeeded(2024)
	for i := 0; i < 20; i++ {
		_, err := h.herd.Buy([]string{"cow", "chicken", "pig"}[i%3])
		require.NoError(t, err)
	}

	for step := 0; step < 500; step++ {
		var d time.Duration
		switch rng.IntN(4) {
		case 0:
			d = 0
		case 1:
			d = time.Duration(rng.IntN(1000)) * time.Millisecond
		case 2:
			d = time.Duration(rng.IntN(40)) * h.day
		default:
			d = 1000 * h.day
		}
		h.advance(d)
		if rng.IntN(2) == 0 {
			_, _ = h.herd.FeedAll()
		}
		for _, a := range h.herd.Animals() {
			require.GreaterOrEqual(t, a.Health, 0.0)
			require.LessOrEqual(t, a.Health, 100.0)
		}
	}
}

func TestOldAgeKillsRegardlessOfHealth(t *testing.T) {
	h := newHarness(50000)
	id, err := h.herd.Buy("chicken")
	require.NoError(t, err)

	chicken, _ := catalog.Default().Animal("chicken")
	h.advance(time.Duration(chicken.LifespanDays) * h.day)

	_, alive := h.herd.Animal(id)
	assert.False(t, alive)
	assert.Equal(t, 2.0, h.herd.Inventory().Get("chicken_meat"), "healthy carcass pays full yield")
	assert.Contains(t, (*h.events)[len(*h.events)-1], "old age")
}

func TestStarvation(t *testing.T) {
	h := newHarness(50000)
	id, err := h.herd.Buy("chicken")
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		h.advance(h.day)
	}
	_, alive := h.herd.Animal(id)
	assert.False(t, alive)
	assert.Equal(t, 0.0, h.herd.Inventory().Get("chicken_meat"))
}

func TestHealthDecaysOnlyWhenOverdue(t *testing.T) {
	h := newHarness(50000)
	id, _ := h.herd.Buy("pig")

	h.advance(h.day)
	pig, _ := h.herd.Animal(id)
	assert.Equal(t, 100.0, pig.Health)

	h.advance(2 * h.day)
	pig, _ = h.herd.Animal(id)
	assert.InDelta(t, 94.0, pig.Health, 1e-9) // two overdue days at 3/day
}

func TestSlaughter(t *testing.T) {
	h := newHarness(50000)
	id, _ := h.herd.Buy("cow")

	_, err := h.herd.Slaughter(999)
	require.ErrorIs(t, err, economy.ErrNotFound)

	yields, err := h.herd.Slaughter(id)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"cow_meat": 400}, yields)
	assert.Equal(t, 400.0, h.herd.Inventory().Get("cow_meat"))

	_, err = h.herd.Slaughter(id)
	require.ErrorIs(t, err, economy.ErrNotFound)

	next, _ := h.herd.Buy("cow")
	assert.Greater(t, next, id, "ids are never reused")
}

func TestBreeding(t *testing.T) {
	h := newHarness(50000)
	a, _ := h.herd.Buy("pig")
	b, _ := h.herd.Buy("pig")
	_, _ = h.herd.Buy("cow")

	assert.Equal(t, 0, h.herd.StartBreeding(), "juveniles cannot breed")

	h.days(t, 20)
	assert.Equal(t, 1, h.herd.StartBreeding())
	mother, _ := h.herd.Animal(a)
	father, _ := h.herd.Animal(b)
	assert.True(t, mother.Pregnant)
	assert.Equal(t, Pregnant, mother.Stage())
	assert.False(t, father.Pregnant)
	assert.Equal(t, 0, h.herd.StartBreeding(), "no second pair available")

	h.days(t, 12)
	mother, _ = h.herd.Animal(a)
	assert.False(t, mother.Pregnant)

	pig, _ := catalog.Default().Animal("pig")
	born := h.herd.Stats().Heads["pig"] - 2
	assert.GreaterOrEqual(t, born, int(pig.Litter.Min))
	assert.LessOrEqual(t, born, int(pig.Litter.Max))

	for _, an := range h.herd.Animals() {
		if an.ID > 3 {
			assert.False(t, an.Mature)
			assert.Equal(t, "pig", an.Kind)
		}
	}
}

func TestSellProduct(t *testing.T) {
	h := newHarness(0)
	_, err := h.herd.Sell("wool", 1)
	require.ErrorIs(t, err, economy.ErrUnknownKind)
	_, err = h.herd.Sell("eggs", 1)
	require.ErrorIs(t, err, economy.ErrInsufficientInventory)

	h.herd.Inventory().Credit("eggs", 10)
	revenue, err := h.herd.Sell("eggs", 10)
	require.NoError(t, err)
	assert.Equal(t, 3.0, revenue)
	assert.Equal(t, 3.0, h.wallet.Balance())
}

func TestStateRoundTrip(t *testing.T) {
	h := newHarness(50000)
	_, _ = h.herd.Buy("cow")
	_, _ = h.herd.Buy("chicken")
	h.days(t, 10)

	saved := h.herd.State()
	other := newHarness(50000)
	other.clk.Set(h.clk.Now())
	other.herd.Restore(saved)
	assert.Equal(t, h.herd.Animals(), other.herd.Animals())

	h.days(t, 15)
	other.days(t, 15)
	assert.Equal(t, h.herd.Animals(), other.herd.Animals())
	assert.Equal(t, h.herd.Inventory().Get("eggs"), other.herd.Inventory().Get("eggs"))

	id, _ := other.herd.Buy("pig")
	assert.Equal(t, AnimalID(3), id)
}
