package weather

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-farm/internal/catalog"
	"github.com/talgya/mini-farm/internal/clock"
	"github.com/talgya/mini-farm/internal/config"
	"github.com/talgya/mini-farm/internal/entropy"
)

type recordedHazards struct {
	calls []string
}

func (r *recordedHazards) MachineDamage(float64) {
	r.calls = append(r.calls, "storm")
}

func (r *recordedHazards) EmergencyIrrigation(float64) {
	r.calls = append(r.calls, "drought")
}

func (r *recordedHazards) FrostDamage(float64) {
	r.calls = append(r.calls, "frost")
}

func (r *recordedHazards) OperationSlowdown(float64, time.Duration) {
	r.calls = append(r.calls, "snow")
}

func newEngine(t *testing.T, seed uint64) (*Engine, *clock.Sim) {
	t.Helper()
	clk := clock.NewSim(0)
	return New(catalog.Default(), config.Default().Weather, clk, entropy.NewSeeded(seed)), clk
}

func advance(e *Engine, clk *clock.Sim, d time.Duration) {
	clk.Advance(d)
	e.Tick(d)
}

func TestSameSeedSameWeather(t *testing.T) {
	a, ca := newEngine(t, 99)
	b, cb := newEngine(t, 99)
	for i := 0; i < 200; i++ {
		advance(a, ca, time.Minute)
		advance(b, cb, time.Minute)
		require.Equal(t, a.Current(), b.Current())
	}
}

func TestWeatherChangesOnlyAfterDuration(t *testing.T) {
	e, clk := newEngine(t, 1)
	first := e.Current()
	transitions := e.transitions

	advance(e, clk, first.Duration-time.Millisecond)
	assert.Equal(t, transitions, e.transitions)

	advance(e, clk, time.Millisecond)
	assert.Equal(t, transitions+1, e.transitions)
	assert.Equal(t, first, e.History()[len(e.History())-1])
}

func TestWeatherAlwaysValidForSeason(t *testing.T) {
	cat := catalog.Default()
	e, clk := newEngine(t, 5)
	for i := 0; i < 2000; i++ {
		advance(e, clk, 30*time.Second)
		kind, ok := cat.WeatherKind(e.CurrentKind())
		require.True(t, ok)
		require.True(t, kind.ValidIn(e.CurrentSeason()), "%s in %s", kind.Key, e.CurrentSeason())
		cur := e.Current()
		require.GreaterOrEqual(t, cur.WindSpeed, 5.0)
		require.LessOrEqual(t, cur.WindSpeed, 25.0)
	}
}

func TestSeasonCycleForcesReroll(t *testing.T) {
	e, clk := newEngine(t, 11)
	cfg := config.Default().Weather
	seen := []catalog.Season{e.CurrentSeason()}

	for i := 0; i < 4; i++ {
		advance(e, clk, cfg.SeasonLength)
		cur := e.Current()
		assert.Equal(t, clk.Now(), cur.StartedAt, "season change rerolls at the boundary")
		assert.Equal(t, e.CurrentSeason(), cur.Season)
		seen = append(seen, e.CurrentSeason())
	}
	assert.Equal(t, []catalog.Season{catalog.Spring, catalog.Summer, catalog.Autumn, catalog.Winter, catalog.Spring}, seen)
}

func TestLongTickMatchesShortTicks(t *testing.T) {
	long, lc := newEngine(t, 7)
	short, sc := newEngine(t, 7)

	advance(long, lc, 2*time.Hour)
	for i := 0; i < 120; i++ {
		advance(short, sc, time.Minute)
	}

	assert.Equal(t, catalog.Autumn, long.CurrentSeason())
	assert.Equal(t, short.CurrentSeason(), long.CurrentSeason())
	assert.Equal(t, short.Current(), long.Current())
	assert.Equal(t, short.History(), long.History())
	assert.Equal(t, short.Remaining(), long.Remaining())
	assert.Greater(t, long.transitions, 20)
}

func TestMultipliersIncludeSeasonBonus(t *testing.T) {
	e, _ := newEngine(t, 3)
	cat := catalog.Default()
	kind, _ := cat.WeatherKind(e.CurrentKind())
	spring, _ := cat.Season(catalog.Spring)

	m := e.Multipliers()
	assert.InDelta(t, kind.CropGrowth*spring.CropGrowthBonus, m.CropGrowth, 1e-9)
	assert.InDelta(t, kind.AnimalProductivity*spring.AnimalProductivityBonus, m.AnimalProductivity, 1e-9)
	assert.Equal(t, kind.MachineEfficiency, m.MachineEfficiency)
}

// A single-season catalog where sunny always turns into storm, which makes
// the hazard dispatch observable.
const stormyCatalog = `
seasons:
  - {key: spring, name: Spring, crop_growth_bonus: 1, animal_productivity_bonus: 1, average_temperature: 15}
weather:
  - key: sunny
    probability: {spring: 1}
    transitions: [storm]
    temperature: {min: 15, max: 30}
  - key: storm
    probability: {spring: 0.0001}
    transitions: [sunny]
    temperature: {min: 12, max: 25}
    damaging: true
`

func TestDamagingWeatherCallsHazards(t *testing.T) {
	cat, err := catalog.Load(strings.NewReader(stormyCatalog))
	require.NoError(t, err)

	cfg := config.Default().Weather
	cfg.TransitionBias = 1
	clk := clock.NewSim(0)
	e := New(cat, cfg, clk, entropy.NewSeeded(8))
	h := &recordedHazards{}
	e.SetHazards(h)

	require.Equal(t, "sunny", e.CurrentKind())
	advance(e, clk, e.Remaining())
	assert.Equal(t, "storm", e.CurrentKind())
	assert.True(t, e.Current().Damaging)
	assert.Equal(t, []string{"storm"}, h.calls)

	advance(e, clk, e.Remaining())
	assert.Equal(t, "sunny", e.CurrentKind())
	assert.Len(t, h.calls, 1)
}

func TestForecastSumsToOne(t *testing.T) {
	e, clk := newEngine(t, 21)
	for i := 0; i < 10; i++ {
		total := 0.0
		for _, f := range e.Forecast() {
			total += f.Probability
		}
		assert.InDelta(t, 1.0, total, 1e-9)
		advance(e, clk, 4*time.Minute)
	}
}

func TestStateRoundTrip(t *testing.T) {
	e, clk := newEngine(t, 42)
	rng := entropy.NewSeeded(42)
	e.rng = rng
	advance(e, clk, 17*time.Minute)

	rngState, err := rng.State()
	require.NoError(t, err)
	saved := e.State()

	want := make([]Snapshot, 0, 20)
	for i := 0; i < 20; i++ {
		advance(e, clk, 3*time.Minute)
		want = append(want, e.Current())
	}

	clk2 := clock.NewSim(17 * time.Minute)
	rng2 := entropy.NewSeeded(1)
	require.NoError(t, rng2.Restore(rngState))
	restored := New(catalog.Default(), config.Default().Weather, clk2, rng2)
	restored.Restore(saved)
	require.NoError(t, rng2.Restore(rngState))

	for i := 0; i < 20; i++ {
		advance(restored, clk2, 3*time.Minute)
		require.Equal(t, want[i], restored.Current())
	}
}
