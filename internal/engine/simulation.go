// Simulation ties together all farm subsystems and runs them each frame.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-farm/internal/catalog"
	"github.com/talgya/mini-farm/internal/clock"
	"github.com/talgya/mini-farm/internal/config"
	"github.com/talgya/mini-farm/internal/crops"
	"github.com/talgya/mini-farm/internal/economy"
	"github.com/talgya/mini-farm/internal/entropy"
	"github.com/talgya/mini-farm/internal/finance"
	"github.com/talgya/mini-farm/internal/livestock"
	"github.com/talgya/mini-farm/internal/machinery"
	"github.com/talgya/mini-farm/internal/market"
	"github.com/talgya/mini-farm/internal/processing"
	"github.com/talgya/mini-farm/internal/weather"
)

// MaxEvents bounds the in-memory event log.
const MaxEvents = 1000

// Event is a notable occurrence on the farm.
type Event struct {
	At          time.Duration `json:"at" db:"at"`
	Description string        `json:"description" db:"description"`
	Category    string        `json:"category" db:"category"` // "weather", "livestock", "market", "finance", ...
}

// Options configure a new Simulation.
type Options struct {
	Catalog *catalog.Catalog // defaults to catalog.Default()
	Balance config.Balance
	Seed    uint64
}

// Simulation holds the complete farm state and wires the subsystems
// together. It is not safe for concurrent use; Engine serializes access.
type Simulation struct {
	Catalog *catalog.Catalog
	Balance config.Balance

	Clock  *clock.Sim
	Rand   *entropy.Seeded
	Wallet *economy.Purse

	Weather    *weather.Engine
	Crops      *crops.Field
	Livestock  *livestock.Herd
	Machinery  *machinery.Fleet
	Processing *processing.Plant
	Market     *market.Market
	Finance    *finance.Finance

	events    []Event
	lastDaily time.Duration
}

// New builds a fresh farm: starting cash in the wallet, empty field, herd,
// fleet and plant, and a market at base prices.
func New(opts Options) *Simulation {
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	cfg := opts.Balance

	s := &Simulation{
		Catalog: cat,
		Balance: cfg,
		Clock:   clock.NewSim(0),
		Rand:    entropy.NewSeeded(opts.Seed),
		Wallet:  economy.NewPurse(cfg.StartingCash),
	}

	s.Finance = finance.New(finance.Deps{
		Balance: cfg.Finance,
		Clock:   s.Clock,
		Wallet:  s.Wallet,
		Events:  s,
	})
	s.Weather = weather.New(cat, cfg.Weather, s.Clock, s.Rand)

	// The market reads the producers' stocks and the producers quote sales
	// through the market, so the stocks are created up front.
	cropStock := economy.NewStock()
	herdStock := economy.NewStock()
	plantStock := economy.NewStock()

	s.Market = market.New(market.Deps{
		Catalog:     cat,
		Balance:     cfg.Market,
		Clock:       s.Clock,
		Wallet:      s.Wallet,
		Weather:     s.Weather,
		Rand:        s.Rand,
		Inventories: []economy.Inventory{cropStock, herdStock, plantStock},
		Ledger:      s.Finance,
		Events:      s,
	})
	s.Crops = crops.New(crops.Deps{
		Catalog: cat,
		Balance: cfg.Crops,
		Clock:   s.Clock,
		Wallet:  s.Wallet,
		Weather: s.Weather,
		Stock:   cropStock,
		Quoter:  s.Market,
		Ledger:  s.Finance,
		Events:  s,
	})
	s.Livestock = livestock.New(livestock.Deps{
		Catalog: cat,
		Balance: cfg.Livestock,
		Clock:   s.Clock,
		Wallet:  s.Wallet,
		Weather: s.Weather,
		Rand:    s.Rand,
		Stock:   herdStock,
		Quoter:  s.Market,
		Ledger:  s.Finance,
		Events:  s,
	})
	s.Machinery = machinery.New(machinery.Deps{
		Catalog:   cat,
		Balance:   cfg.Machinery,
		Clock:     s.Clock,
		Wallet:    s.Wallet,
		Weather:   s.Weather,
		Rand:      s.Rand,
		FieldWork: s.Crops,
		Ledger:    s.Finance,
		Events:    s,
	})
	s.Processing = processing.New(processing.Deps{
		Catalog: cat,
		Clock:   s.Clock,
		Wallet:  s.Wallet,
		Sources: []economy.Inventory{cropStock, herdStock},
		Stock:   plantStock,
		Ledger:  s.Finance,
		Events:  s,
	})

	s.Weather.SetHazards(hazards{s})
	return s
}

// Now is the current simulated time.
func (s *Simulation) Now() time.Duration { return s.Clock.Now() }

// Advance moves simulated time forward by elapsed and ticks every subsystem
// in a fixed order: weather, crops, livestock, machinery, processing,
// market, finance.
func (s *Simulation) Advance(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	now := s.Clock.Advance(elapsed)

	s.Weather.Tick(elapsed)
	s.Crops.Tick(elapsed)
	s.Livestock.Tick(elapsed)
	s.Machinery.Tick(elapsed)
	s.Processing.Tick(elapsed)
	s.Market.Tick(elapsed)
	s.Finance.Tick(elapsed)

	if day := s.Balance.Finance.Day; day > 0 && now-s.lastDaily >= day {
		s.dailyReport(now)
		s.lastDaily = now - (now-s.lastDaily)%day
	}
}

// Emit appends an event to the log, dropping the oldest past MaxEvents.
func (s *Simulation) Emit(category, description string) {
	s.events = append(s.events, Event{At: s.Clock.Now(), Description: description, Category: category})
	if len(s.events) > MaxEvents {
		s.events = append(s.events[:0:0], s.events[len(s.events)-MaxEvents:]...)
	}
}

// Events returns the event log, oldest first.
func (s *Simulation) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Recent returns up to n of the newest events, oldest first.
func (s *Simulation) Recent(n int) []Event {
	if n <= 0 {
		return nil
	}
	start := len(s.events) - n
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(s.events)-start)
	copy(out, s.events[start:])
	return out
}

func (s *Simulation) dailyReport(now time.Duration) {
	herd := s.Livestock.Stats()
	fleet := s.Machinery.Stats()
	books := s.Finance.Summary()
	w := s.Weather.Current()

	counts := make(map[string]int)
	for _, e := range s.events {
		if e.At > now-s.Balance.Finance.Day {
			counts[e.Category]++
		}
	}

	slog.Info("daily report",
		"time", SimTime(now),
		"weather", w.Kind,
		"season", w.Season,
		"cash", humanize.FormatFloat("#,###.##", books.Cash),
		"net_profit", humanize.FormatFloat("#,###.##", books.NetProfit),
		"debt", humanize.FormatFloat("#,###.##", books.Debt),
		"credit_score", fmt.Sprintf("%.2f", books.CreditScore),
		"plots", len(s.Crops.Plots()),
		"animals", len(s.Livestock.Animals()),
		"avg_health", herd.AverageHealth,
		"machines", fleet.Count,
		"operational", fleet.Operational,
		"contracts", len(s.Market.Contracts()),
		"events_weather", counts["weather"],
		"events_livestock", counts["livestock"],
		"events_market", counts["market"],
		"events_finance", counts["finance"],
	)
}

// hazards routes damaging weather to the subsystem that owns each effect.
type hazards struct{ s *Simulation }

func (h hazards) MachineDamage(chance float64) {
	h.s.Machinery.ApplyWeatherDamage(chance)
}

func (h hazards) EmergencyIrrigation(cost float64) {
	if !h.s.Wallet.TrySpend(cost) {
		h.s.Emit("weather", "drought: could not afford emergency irrigation")
		slog.Warn("emergency irrigation unpaid", "cost", cost, "cash", h.s.Wallet.Balance())
		return
	}
	h.s.Finance.RecordExpense(cost, economy.CategoryUtilities, "emergency irrigation")
	h.s.Emit("weather", fmt.Sprintf("drought: emergency irrigation cost %s", humanize.FormatFloat("#,###.##", cost)))
}

func (h hazards) FrostDamage(fraction float64) {
	h.s.Crops.ApplyFrostDamage(fraction)
}

func (h hazards) OperationSlowdown(factor float64, d time.Duration) {
	h.s.Machinery.ApplySnowSlowdown(factor, d)
	h.s.Emit("weather", "snow is slowing field operations")
}

// SimTime renders simulated time as a day and clock reading.
func SimTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	day := d / (24 * time.Hour)
	rest := d % (24 * time.Hour)
	return fmt.Sprintf("Day %d, %d:%02d:%02d",
		day+1, int(rest.Hours()), int(rest.Minutes())%60, int(rest.Seconds())%60)
}
