// Package market prices commodities, buys the farm's goods and manages
// supply contracts with clients.
package market

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/talgya/mini-farm/internal/catalog"
	"github.com/talgya/mini-farm/internal/clock"
	"github.com/talgya/mini-farm/internal/config"
	"github.com/talgya/mini-farm/internal/economy"
	"github.com/talgya/mini-farm/internal/entropy"
)

// Weather is the part of the weather engine prices react to.
type Weather interface {
	CurrentKind() string
	CurrentSeason() catalog.Season
}

// Trend is the short-term direction of a commodity price.
type Trend string

const (
	Rising  Trend = "rising"
	Falling Trend = "falling"
	Stable  Trend = "stable"
)

// PriceRecord is the market state of one commodity.
type PriceRecord struct {
	Commodity string    `json:"commodity"`
	Price     float64   `json:"price"`
	Base      float64   `json:"base"`
	Demand    float64   `json:"demand"`
	Supply    float64   `json:"supply"`
	History   []float64 `json:"history"`
}

type record struct {
	kind    catalog.Commodity
	price   float64
	demand  float64
	supply  float64
	history *ring
}

func (r *record) snapshot() PriceRecord {
	return PriceRecord{
		Commodity: r.kind.Key,
		Price:     r.price,
		Base:      r.kind.BasePrice,
		Demand:    r.demand,
		Supply:    r.supply,
		History:   r.history.values(),
	}
}

// Deps are the collaborators of a Market. Inventories are drained in the
// given order on sales and contract deliveries.
type Deps struct {
	Catalog     *catalog.Catalog
	Balance     config.Market
	Clock       clock.Clock
	Wallet      economy.Wallet
	Weather     Weather
	Rand        entropy.Source
	Inventories []economy.Inventory
	Ledger      economy.Recorder
	Events      economy.EventSink
}

// Market holds every commodity's price and the open contracts.
type Market struct {
	cat     *catalog.Catalog
	cfg     config.Market
	clk     clock.Clock
	wallet  economy.Wallet
	weather Weather
	rng     entropy.Source
	invs    []economy.Inventory
	ledger  economy.Recorder
	events  economy.EventSink

	records         []*record
	byKey           map[string]*record
	contracts       map[ContractID]*Contract
	nextContract    ContractID
	lastPriceUpdate time.Duration
	lastContractRun time.Duration
}

// New opens a market at base prices with a few starting contracts.
func New(d Deps) *Market {
	m := &Market{
		cat:          d.Catalog,
		cfg:          d.Balance,
		clk:          d.Clock,
		wallet:       d.Wallet,
		weather:      d.Weather,
		rng:          d.Rand,
		invs:         d.Inventories,
		ledger:       economy.OrNop(d.Ledger),
		events:       economy.SinkOrNop(d.Events),
		byKey:        make(map[string]*record),
		contracts:    make(map[ContractID]*Contract),
		nextContract: 1,
	}
	now := d.Clock.Now()
	m.lastPriceUpdate = now
	m.lastContractRun = now

	for _, c := range d.Catalog.Commodities {
		r := &record{
			kind:    c,
			price:   c.BasePrice,
			demand:  entropy.Between(m.rng, m.cfg.InitialLevel[0], m.cfg.InitialLevel[1]),
			supply:  entropy.Between(m.rng, m.cfg.InitialLevel[0], m.cfg.InitialLevel[1]),
			history: newRing(m.cfg.HistoryLength),
		}
		r.history.push(r.price)
		m.records = append(m.records, r)
		m.byKey[c.Key] = r
	}

	lo, hi := m.cfg.InitialContracts[0], m.cfg.InitialContracts[1]
	n := lo
	if hi > lo {
		n += m.rng.IntN(hi - lo + 1)
	}
	for i := 0; i < n; i++ {
		m.generateContract(0)
	}
	return m
}

func (m *Market) days(n float64) time.Duration {
	return time.Duration(n * float64(m.cfg.Day))
}

// Price returns the current unit price of commodity.
func (m *Market) Price(commodity string) (float64, bool) {
	r, ok := m.byKey[commodity]
	if !ok {
		return 0, false
	}
	return r.price, true
}

// Prices returns every commodity's record in catalog order.
func (m *Market) Prices() []PriceRecord {
	out := make([]PriceRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.snapshot())
	}
	return out
}

// Trend compares demand with supply.
func (m *Market) Trend(commodity string) Trend {
	r, ok := m.byKey[commodity]
	switch {
	case !ok:
		return Stable
	case r.demand > r.supply:
		return Rising
	case r.demand < r.supply:
		return Falling
	default:
		return Stable
	}
}

// Available sums commodity over every inventory the market can draw from.
func (m *Market) Available(commodity string) float64 {
	return economy.Available(commodity, m.invs...)
}

// Multiplier prices a sale of qty units relative to the unit price: the
// demand/supply ratio, a volume dampening, and the seasonal and weather
// factors of the commodity. Unknown commodities are neutral.
func (m *Market) Multiplier(commodity string, qty float64) float64 {
	r, ok := m.byKey[commodity]
	if !ok {
		return 1
	}
	mult := math.Sqrt(r.demand / r.supply)
	mult *= math.Max(m.cfg.DampeningFloor, 1-qty/m.cfg.DampeningScale)
	if m.weather != nil {
		mult *= r.kind.SeasonalFactor(m.weather.CurrentSeason())
		mult *= r.kind.WeatherFactor(m.weather.CurrentKind())
	}
	return economy.Clamp(mult, m.cfg.MultiplierRange[0], m.cfg.MultiplierRange[1])
}

// NoteSale raises supply after qty units reached the market.
func (m *Market) NoteSale(commodity string, qty float64) {
	if r, ok := m.byKey[commodity]; ok {
		r.supply = math.Min(m.cfg.Band[1], r.supply+qty*m.cfg.SupplyPerSale)
	}
}

// Sell sells qty of commodity out of the farm's inventories.
func (m *Market) Sell(commodity string, qty float64) (float64, error) {
	r, ok := m.byKey[commodity]
	if !ok {
		return 0, fmt.Errorf("sell %q: %w", commodity, economy.ErrUnknownKind)
	}
	if have := m.Available(commodity); qty <= 0 || have < qty {
		return 0, fmt.Errorf("sell %.2f %s (have %.2f): %w", qty, commodity, have, economy.ErrInsufficientInventory)
	}

	unit := r.price * m.Multiplier(commodity, qty)
	revenue := economy.Round(qty*unit, 2)

	economy.ConsumeInOrder(commodity, qty, m.invs...)
	m.wallet.Credit(revenue)
	m.NoteSale(commodity, qty)
	m.ledger.RecordRevenue(revenue, category(r.kind.Group), fmt.Sprintf("sold %.2f %s at %.2f", qty, r.kind.Name, unit))
	slog.Debug("market sale", "commodity", commodity, "qty", qty, "unit", unit, "revenue", revenue)
	return revenue, nil
}

func category(g catalog.Group) string {
	switch g {
	case catalog.GroupLivestock:
		return economy.CategoryLivestockSales
	case catalog.GroupProcessed:
		return economy.CategoryProcessedSales
	default:
		return economy.CategoryCropSales
	}
}

// Tick updates prices on their interval, settles due contract payments,
// drops expired offers and occasionally rolls a new one.
func (m *Market) Tick(elapsed time.Duration) {
	now := m.clk.Now()
	for m.cfg.PriceInterval > 0 && now-m.lastPriceUpdate >= m.cfg.PriceInterval {
		m.updatePrices()
		m.lastPriceUpdate += m.cfg.PriceInterval
	}

	m.settle(now)
	m.purge(now)

	for m.cfg.ContractInterval > 0 && now-m.lastContractRun >= m.cfg.ContractInterval {
		m.lastContractRun += m.cfg.ContractInterval
		if m.pending() < m.cfg.MaxOpenContracts && entropy.Chance(m.rng, m.cfg.ContractChance) {
			m.generateContract(now - m.lastContractRun)
		}
	}
}

func (m *Market) updatePrices() {
	lo, hi := m.cfg.Band[0], m.cfg.Band[1]
	for _, r := range m.records {
		vol := r.kind.Volatility
		noise := entropy.Between(m.rng, -vol, vol)
		pressure := (r.demand - r.supply) / m.cfg.PressureScale
		r.price = economy.Clamp(r.price*(1+noise+pressure),
			r.kind.BasePrice*m.cfg.PriceFloor, r.kind.BasePrice*m.cfg.PriceCeiling)
		r.history.push(r.price)

		step := m.cfg.DemandStep / 2
		r.demand = economy.Clamp(r.demand+entropy.Between(m.rng, -step, step), lo, hi)
		r.supply = math.Max(lo, r.supply*m.cfg.SupplyDecay)
	}
}
