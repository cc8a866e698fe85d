// Package weather runs the seasonal weather state machine and derives the
// multipliers every production subsystem reads.
package weather

import (
	"log/slog"
	"math"
	"time"

	"github.com/ojrac/opensimplex-go"

	"github.com/talgya/mini-farm/internal/catalog"
	"github.com/talgya/mini-farm/internal/clock"
	"github.com/talgya/mini-farm/internal/config"
	"github.com/talgya/mini-farm/internal/entropy"
)

// Multipliers are the dimensionless factors the rest of the farm applies to
// its base rates.
type Multipliers struct {
	CropGrowth         float64 `json:"crop_growth"`
	AnimalProductivity float64 `json:"animal_productivity"`
	MachineEfficiency  float64 `json:"machine_efficiency"`
	MarketPrice        float64 `json:"market_price"`
}

// Neutral multipliers leave every rate unchanged.
var Neutral = Multipliers{1, 1, 1, 1}

// Snapshot is the weather at one point in time.
type Snapshot struct {
	Kind        string         `json:"kind"`
	Name        string         `json:"name"`
	Season      catalog.Season `json:"season"`
	Temperature float64        `json:"temperature"` // °C
	Humidity    float64        `json:"humidity"`    // %
	WindSpeed   float64        `json:"wind_speed"`  // km/h
	Multipliers Multipliers    `json:"multipliers"`
	Damaging    bool           `json:"damaging"`
	StartedAt   time.Duration  `json:"started_at"`
	Duration    time.Duration  `json:"duration"`
}

// Hazards receives the one-shot effects of damaging weather. The simulation
// routes each call to the owning subsystem's public entry point.
type Hazards interface {
	MachineDamage(chance float64)
	EmergencyIrrigation(cost float64)
	FrostDamage(fraction float64)
	OperationSlowdown(factor float64, d time.Duration)
}

// Engine is the weather state machine. It is deterministic given its
// entropy.Source.
type Engine struct {
	cat *catalog.Catalog
	cfg config.Weather
	clk clock.Clock
	rng entropy.Source

	noiseSeed int64
	noise     opensimplex.Noise

	current       Snapshot
	remaining     time.Duration
	season        catalog.Season
	seasonElapsed time.Duration
	transitions   int
	history       []Snapshot

	hazards Hazards
}

// New creates a weather engine starting in the first catalog season with a
// kind sampled from that season's distribution.
func New(cat *catalog.Catalog, cfg config.Weather, clk clock.Clock, rng entropy.Source) *Engine {
	seed := int64(rng.IntN(math.MaxInt32))
	e := &Engine{
		cat:       cat,
		cfg:       cfg,
		clk:       clk,
		rng:       rng,
		noiseSeed: seed,
		noise:     opensimplex.NewNormalized(seed),
		season:    cat.Seasons[0].Key,
	}
	e.current = e.generate(e.sampleSeasonal(), clk.Now())
	e.remaining = e.current.Duration
	return e
}

// SetHazards installs the receiver of damaging-weather effects.
func (e *Engine) SetHazards(h Hazards) {
	e.hazards = h
}

// Current returns the weather now in effect.
func (e *Engine) Current() Snapshot { return e.current }

// CurrentKind returns the key of the weather kind now in effect.
func (e *Engine) CurrentKind() string { return e.current.Kind }

// CurrentSeason returns the season now in effect.
func (e *Engine) CurrentSeason() catalog.Season { return e.season }

// Multipliers returns the current production multipliers.
func (e *Engine) Multipliers() Multipliers { return e.current.Multipliers }

// Remaining returns how long the current weather will last.
func (e *Engine) Remaining() time.Duration { return e.remaining }

// History returns past weather, oldest first.
func (e *Engine) History() []Snapshot {
	out := make([]Snapshot, len(e.history))
	copy(out, e.history)
	return out
}

// Tick advances the weather by elapsed simulated time. A season change
// forces an immediate reroll; otherwise the weather changes when its
// duration runs out. Every change that falls inside elapsed is applied in
// time order, so one long tick ends where many short ones would.
func (e *Engine) Tick(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	now := e.clk.Now()
	for elapsed > 0 {
		step := min(elapsed, e.remaining)
		if e.cfg.SeasonLength > 0 {
			step = min(step, e.cfg.SeasonLength-e.seasonElapsed)
		}
		step = max(step, 0)
		e.remaining -= step
		e.seasonElapsed += step
		elapsed -= step
		at := now - elapsed

		switch {
		case e.cfg.SeasonLength > 0 && e.seasonElapsed >= e.cfg.SeasonLength:
			e.seasonElapsed -= e.cfg.SeasonLength
			prev := e.season
			e.season = e.cat.NextSeason(e.season)
			slog.Info("season changed", "from", prev, "to", e.season)
			e.transition(at)
		case e.remaining <= 0:
			e.transition(at)
			if e.remaining <= 0 {
				return
			}
		}
	}
}

func (e *Engine) transition(at time.Duration) {
	next := e.pickNext()

	e.history = append(e.history, e.current)
	if limit := e.cfg.HistoryLimit; limit > 0 && len(e.history) > limit {
		e.history = e.history[len(e.history)-limit:]
	}

	e.current = e.generate(next, at)
	e.remaining = e.current.Duration

	slog.Debug("weather changed",
		"kind", e.current.Kind,
		"season", e.season,
		"temperature", e.current.Temperature,
		"duration", e.current.Duration,
	)

	if e.current.Damaging {
		e.applyHazard(e.current.Kind)
	}
}

func (e *Engine) applyHazard(kind string) {
	if e.hazards == nil {
		return
	}
	slog.Info("damaging weather", "kind", kind)
	switch kind {
	case "storm":
		e.hazards.MachineDamage(e.cfg.StormDamageChance)
	case "drought":
		e.hazards.EmergencyIrrigation(e.cfg.DroughtIrrigationCost)
	case "frost":
		e.hazards.FrostDamage(e.cfg.FrostDamage)
	case "snow":
		e.hazards.OperationSlowdown(e.cfg.SnowSlowdown, e.cfg.SnowSlowdownFor)
	}
}

// pickNext follows the current kind's transition table with probability
// TransitionBias, otherwise samples the season-weighted distribution.
func (e *Engine) pickNext() string {
	if e.rng.Float64() < e.cfg.TransitionBias {
		if options := e.seasonalTransitions(); len(options) > 0 {
			return options[e.rng.IntN(len(options))]
		}
	}
	return e.sampleSeasonal()
}

func (e *Engine) seasonalTransitions() []string {
	cur, ok := e.cat.WeatherKind(e.current.Kind)
	if !ok {
		return nil
	}
	var options []string
	for _, t := range cur.Transitions {
		if k, ok := e.cat.WeatherKind(t); ok && k.ValidIn(e.season) {
			options = append(options, t)
		}
	}
	return options
}

func (e *Engine) sampleSeasonal() string {
	total := 0.0
	for _, k := range e.cat.Weather {
		total += k.Probability[e.season]
	}
	r := e.rng.Float64() * total
	for _, k := range e.cat.Weather {
		p := k.Probability[e.season]
		if p <= 0 {
			continue
		}
		if r < p {
			return k.Key
		}
		r -= p
	}
	if _, ok := e.cat.WeatherKind("sunny"); ok {
		return "sunny"
	}
	return e.cat.Weather[0].Key
}

func (e *Engine) generate(key string, at time.Duration) Snapshot {
	kind, _ := e.cat.WeatherKind(key)
	season, _ := e.cat.Season(e.season)

	e.transitions++
	x := float64(e.transitions) * 0.37
	tn := e.noise.Eval2(x, 0)
	hn := e.noise.Eval2(x, 17.3)

	temp := kind.Temperature.Min + tn*(kind.Temperature.Max-kind.Temperature.Min) +
		(season.AverageTemperature-15)*0.5
	humidity := kind.Humidity.Min + hn*(kind.Humidity.Max-kind.Humidity.Min)
	wind := entropy.Between(e.rng, e.cfg.Wind[0], e.cfg.Wind[1])

	jitter := 1 + (e.rng.Float64()-0.5)*e.cfg.DurationJitter
	duration := time.Duration(float64(e.cfg.Duration) * jitter)

	return Snapshot{
		Kind:        kind.Key,
		Name:        kind.Name,
		Season:      e.season,
		Temperature: math.Round(temp),
		Humidity:    math.Round(humidity),
		WindSpeed:   math.Round(wind*10) / 10,
		Multipliers: Multipliers{
			CropGrowth:         kind.CropGrowth * season.CropGrowthBonus,
			AnimalProductivity: kind.AnimalProductivity * season.AnimalProductivityBonus,
			MachineEfficiency:  kind.MachineEfficiency,
			MarketPrice:        kind.MarketPrice,
		},
		Damaging:  kind.Damaging,
		StartedAt: at,
		Duration:  duration,
	}
}

// Forecast is the probability of one successor kind.
type Forecast struct {
	Kind        string  `json:"kind"`
	Probability float64 `json:"probability"`
}

// Forecast returns the exact distribution of the next weather kind in the
// current season, in catalog order, omitting impossible kinds.
func (e *Engine) Forecast() []Forecast {
	options := e.seasonalTransitions()
	bias := e.cfg.TransitionBias
	if len(options) == 0 {
		bias = 0
	}

	total := 0.0
	for _, k := range e.cat.Weather {
		total += k.Probability[e.season]
	}

	var out []Forecast
	for _, k := range e.cat.Weather {
		p := 0.0
		if total > 0 {
			p = (1 - bias) * k.Probability[e.season] / total
		}
		for _, o := range options {
			if o == k.Key {
				p += bias / float64(len(options))
			}
		}
		if p > 0 {
			out = append(out, Forecast{Kind: k.Key, Probability: p})
		}
	}
	return out
}
