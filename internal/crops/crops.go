// Package crops simulates the farm's fields: planting, growth, harvest and
// sale of crops.
package crops

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/talgya/mini-farm/internal/catalog"
	"github.com/talgya/mini-farm/internal/clock"
	"github.com/talgya/mini-farm/internal/config"
	"github.com/talgya/mini-farm/internal/economy"
)

// Weather is the part of the weather engine crops read.
type Weather interface {
	CurrentKind() string
}

// Quoter prices a sale of qty units of a commodity relative to its base.
type Quoter interface {
	Multiplier(commodity string, qty float64) float64
}

// Coord identifies a plot on the field grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// Crop is a planting on one plot.
type Crop struct {
	Kind              string        `json:"kind"`
	Coord             Coord         `json:"coord"`
	PlantedAt         time.Duration `json:"planted_at"`
	Growth            float64       `json:"growth"` // [0, 1]
	Ready             bool          `json:"ready"`
	WeatherMultiplier float64       `json:"weather_multiplier"`
	Condition         float64       `json:"condition"` // frost damage and field-work bonuses
}

// EffectiveMultiplier is the factor applied to base yield at harvest.
func (c Crop) EffectiveMultiplier() float64 {
	return c.WeatherMultiplier * c.Condition
}

// Deps are the collaborators of a Field.
type Deps struct {
	Catalog *catalog.Catalog
	Balance config.Crops
	Clock   clock.Clock
	Wallet  economy.Wallet
	Weather Weather
	Stock   *economy.Stock
	Quoter  Quoter
	Ledger  economy.Recorder
	Events  economy.EventSink
}

// Field owns every plot and the crop inventory.
type Field struct {
	cat     *catalog.Catalog
	cfg     config.Crops
	clk     clock.Clock
	wallet  economy.Wallet
	weather Weather
	stock   *economy.Stock
	quoter  Quoter
	ledger  economy.Recorder
	events  economy.EventSink

	plots map[Coord]*Crop
}

// New creates an empty field.
func New(d Deps) *Field {
	stock := d.Stock
	if stock == nil {
		stock = economy.NewStock()
	}
	return &Field{
		cat:     d.Catalog,
		cfg:     d.Balance,
		clk:     d.Clock,
		wallet:  d.Wallet,
		weather: d.Weather,
		stock:   stock,
		quoter:  d.Quoter,
		ledger:  economy.OrNop(d.Ledger),
		events:  economy.SinkOrNop(d.Events),
		plots:   make(map[Coord]*Crop),
	}
}

// Plant sows kind at c, paying its seed cost.
func (f *Field) Plant(c Coord, kind string) error {
	k, ok := f.cat.Crop(kind)
	if !ok {
		return fmt.Errorf("plant %q: %w", kind, economy.ErrUnknownKind)
	}
	if _, taken := f.plots[c]; taken {
		return fmt.Errorf("plant %s at %s: %w", kind, c, economy.ErrOccupiedPlot)
	}
	if !f.wallet.TrySpend(k.Cost) {
		return fmt.Errorf("plant %s (cost %.0f): %w", kind, k.Cost, economy.ErrInsufficientFunds)
	}

	f.plots[c] = &Crop{
		Kind:              kind,
		Coord:             c,
		PlantedAt:         f.clk.Now(),
		WeatherMultiplier: f.weatherMultiplier(),
		Condition:         1,
	}
	f.ledger.RecordExpense(k.Cost, economy.CategorySeeds, "seeds: "+k.Name)
	slog.Debug("crop planted", "kind", kind, "coord", c.String())
	return nil
}

// Tick advances growth of every unharvested crop.
func (f *Field) Tick(elapsed time.Duration) {
	now := f.clk.Now()
	mult := f.weatherMultiplier()

	for _, c := range f.sorted() {
		if c.Ready {
			continue
		}
		k, ok := f.cat.Crop(c.Kind)
		if !ok {
			continue
		}
		growth := math.Min(1, float64(now-c.PlantedAt)/float64(k.GrowthDuration))
		if growth > c.Growth {
			c.Growth = growth
		}
		c.WeatherMultiplier = mult

		if c.Growth >= 1 {
			c.Growth = 1
			c.Ready = true
			f.events.Emit("crops", fmt.Sprintf("%s at %s is ready to harvest", k.Name, c.Coord))
		}
	}
}

// weatherMultiplier averages every crop kind's sensitivity to the current
// weather. Kinds with no entry for the weather count as 1.0.
func (f *Field) weatherMultiplier() float64 {
	if f.weather == nil || len(f.cat.Crops) == 0 {
		return 1
	}
	kind := f.weather.CurrentKind()
	total := 0.0
	for _, k := range f.cat.Crops {
		if s, ok := k.Sensitivity[kind]; ok {
			total += s
		} else {
			total += 1
		}
	}
	return total / float64(len(f.cat.Crops))
}

// Harvest gathers the ready crop at c into the inventory and clears the plot.
func (f *Field) Harvest(c Coord) (float64, error) {
	crop, ok := f.plots[c]
	if !ok || !crop.Ready {
		return 0, fmt.Errorf("harvest %s: %w", c, economy.ErrNotReady)
	}
	k, ok := f.cat.Crop(crop.Kind)
	if !ok {
		return 0, fmt.Errorf("harvest %s: %q: %w", c, crop.Kind, economy.ErrUnknownKind)
	}

	yield := economy.Round(k.BaseYield*crop.EffectiveMultiplier(), 1)
	f.stock.Credit(crop.Kind, yield)
	delete(f.plots, c)

	slog.Debug("crop harvested", "kind", crop.Kind, "coord", c.String(), "yield", yield)
	return yield, nil
}

// Sell sells qty of a harvested crop directly, priced at its base price
// times the market multiplier.
func (f *Field) Sell(kind string, qty float64) (float64, error) {
	k, ok := f.cat.Crop(kind)
	if !ok {
		return 0, fmt.Errorf("sell %q: %w", kind, economy.ErrUnknownKind)
	}
	if qty <= 0 || f.stock.Get(kind) < qty {
		return 0, fmt.Errorf("sell %.1f %s (have %.1f): %w", qty, kind, f.stock.Get(kind), economy.ErrInsufficientInventory)
	}

	mult := 1.0
	if f.quoter != nil {
		mult = f.quoter.Multiplier(kind, qty)
	}
	revenue := math.Round(qty * k.BasePrice * mult)

	f.stock.Consume(kind, qty)
	f.wallet.Credit(revenue)
	f.ledger.RecordRevenue(revenue, economy.CategoryCropSales, fmt.Sprintf("sold %.1f %s", qty, k.Name))
	return revenue, nil
}

// ApplyFrostDamage reduces the condition of every growing crop by fraction.
func (f *Field) ApplyFrostDamage(fraction float64) {
	fraction = economy.Clamp(fraction, 0, 1)
	hit := 0
	for _, c := range f.plots {
		if c.Ready {
			continue
		}
		c.Condition *= 1 - fraction
		hit++
	}
	if hit > 0 {
		f.events.Emit("weather", fmt.Sprintf("frost damaged %d crops", hit))
	}
}

// ApplyFieldWork folds a machine operation bonus into every growing crop,
// capped at the configured maximum condition.
func (f *Field) ApplyFieldWork(operation string, bonus float64) {
	if bonus <= 0 {
		return
	}
	for _, c := range f.plots {
		if c.Ready {
			continue
		}
		c.Condition = math.Min(f.cfg.MaxCondition, c.Condition*bonus)
	}
	slog.Debug("field work applied", "operation", operation, "bonus", bonus)
}

// Crop returns a copy of the crop at c.
func (f *Field) Crop(c Coord) (Crop, bool) {
	crop, ok := f.plots[c]
	if !ok {
		return Crop{}, false
	}
	return *crop, true
}

// Plots returns copies of every planted crop, ordered by coordinate.
func (f *Field) Plots() []Crop {
	out := make([]Crop, 0, len(f.plots))
	for _, c := range f.sorted() {
		out = append(out, *c)
	}
	return out
}

// Inventory exposes the crop stock to the market.
func (f *Field) Inventory() economy.Inventory { return f.stock }

// ExpectedYield estimates what harvesting every ready crop would bring in.
func (f *Field) ExpectedYield() map[string]float64 {
	out := make(map[string]float64)
	for _, c := range f.plots {
		if !c.Ready {
			continue
		}
		if k, ok := f.cat.Crop(c.Kind); ok {
			out[c.Kind] += economy.Round(k.BaseYield*c.EffectiveMultiplier(), 1)
		}
	}
	return out
}

func (f *Field) sorted() []*Crop {
	out := make([]*Crop, 0, len(f.plots))
	for _, c := range f.plots {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Coord.Y != out[j].Coord.Y {
			return out[i].Coord.Y < out[j].Coord.Y
		}
		return out[i].Coord.X < out[j].Coord.X
	})
	return out
}

// State is the persisted form of the field.
type State struct {
	Plots     []Crop             `json:"plots"`
	Inventory map[string]float64 `json:"inventory"`
}

// State captures the field for saving.
func (f *Field) State() State {
	return State{Plots: f.Plots(), Inventory: f.stock.Snapshot()}
}

// Restore replaces the field with a saved one.
func (f *Field) Restore(s State) {
	f.plots = make(map[Coord]*Crop, len(s.Plots))
	for i := range s.Plots {
		c := s.Plots[i]
		f.plots[c.Coord] = &c
	}
	f.stock.Restore(s.Inventory)
}
