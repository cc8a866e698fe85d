package livestock

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/talgya/mini-farm/internal/catalog"
	"github.com/talgya/mini-farm/internal/clock"
	"github.com/talgya/mini-farm/internal/config"
	"github.com/talgya/mini-farm/internal/economy"
	"github.com/talgya/mini-farm/internal/entropy"
	"github.com/talgya/mini-farm/internal/weather"
)

// Weather is the part of the weather engine livestock reads.
type Weather interface {
	Multipliers() weather.Multipliers
}

// Quoter prices a sale of qty units of a commodity relative to its base.
type Quoter interface {
	Multiplier(commodity string, qty float64) float64
}

// Deps are the collaborators of a Herd.
type Deps struct {
	Catalog *catalog.Catalog
	Balance config.Livestock
	Clock   clock.Clock
	Wallet  economy.Wallet
	Weather Weather
	Rand    entropy.Source
	Stock   *economy.Stock
	Quoter  Quoter
	Ledger  economy.Recorder
	Events  economy.EventSink
}

// Herd owns every animal and the livestock product inventory.
type Herd struct {
	cat     *catalog.Catalog
	cfg     config.Livestock
	clk     clock.Clock
	wallet  economy.Wallet
	weather Weather
	rng     entropy.Source
	stock   *economy.Stock
	quoter  Quoter
	ledger  economy.Recorder
	events  economy.EventSink

	animals map[AnimalID]*Animal
	nextID  AnimalID
}

// New creates an empty herd.
func New(d Deps) *Herd {
	stock := d.Stock
	if stock == nil {
		stock = economy.NewStock()
	}
	return &Herd{
		cat:     d.Catalog,
		cfg:     d.Balance,
		clk:     d.Clock,
		wallet:  d.Wallet,
		weather: d.Weather,
		rng:     d.Rand,
		stock:   stock,
		quoter:  d.Quoter,
		ledger:  economy.OrNop(d.Ledger),
		events:  economy.SinkOrNop(d.Events),
		animals: make(map[AnimalID]*Animal),
		nextID:  1,
	}
}

func (h *Herd) days(d float64) time.Duration {
	return time.Duration(d * float64(h.cfg.DayLength))
}

func (h *Herd) add(kind string, now time.Duration) *Animal {
	a := &Animal{
		ID:             h.nextID,
		Kind:           kind,
		BoughtAt:       now,
		Health:         100,
		Alive:          true,
		LastFed:        now,
		LastProduction: now,
		Produced:       make(map[string]float64),
	}
	h.animals[a.ID] = a
	h.nextID++
	return a
}

// Buy purchases a young animal of kind.
func (h *Herd) Buy(kind string) (AnimalID, error) {
	k, ok := h.cat.Animal(kind)
	if !ok {
		return 0, fmt.Errorf("buy %q: %w", kind, economy.ErrUnknownKind)
	}
	if !h.wallet.TrySpend(k.Cost) {
		return 0, fmt.Errorf("buy %s (cost %.0f): %w", kind, k.Cost, economy.ErrInsufficientFunds)
	}
	a := h.add(kind, h.clk.Now())
	h.ledger.RecordExpense(k.Cost, economy.CategoryLivestock, "bought "+k.Name)
	slog.Debug("animal bought", "id", a.ID, "kind", kind)
	return a.ID, nil
}

// Feed feeds one animal.
func (h *Herd) Feed(id AnimalID) error {
	a, ok := h.animals[id]
	if !ok {
		return fmt.Errorf("feed animal %d: %w", id, economy.ErrNotFound)
	}
	k, _ := h.cat.Animal(a.Kind)
	if !h.wallet.TrySpend(k.FeedCost) {
		return fmt.Errorf("feed animal %d (cost %.0f): %w", id, k.FeedCost, economy.ErrInsufficientFunds)
	}
	a.LastFed = h.clk.Now()
	a.Health = economy.Clamp(a.Health+h.cfg.FeedHealthGain, 0, 100)
	h.ledger.RecordExpense(k.FeedCost, economy.CategoryFeed, fmt.Sprintf("fed %s #%d", k.Name, id))
	return nil
}

// FeedAll feeds the whole herd in one charge. It fails without feeding
// anyone if the wallet cannot cover the total.
func (h *Herd) FeedAll() (int, error) {
	total := 0.0
	for _, a := range h.animals {
		k, _ := h.cat.Animal(a.Kind)
		total += k.FeedCost
	}
	if len(h.animals) == 0 {
		return 0, nil
	}
	if !h.wallet.TrySpend(total) {
		return 0, fmt.Errorf("feed %d animals (cost %.0f): %w", len(h.animals), total, economy.ErrInsufficientFunds)
	}

	now := h.clk.Now()
	for _, a := range h.animals {
		a.LastFed = now
		a.Health = economy.Clamp(a.Health+h.cfg.FeedAllHealthGain, 0, 100)
	}
	h.ledger.RecordExpense(total, economy.CategoryFeed, fmt.Sprintf("fed %d animals", len(h.animals)))
	return len(h.animals), nil
}

// StartBreeding pairs eligible animals of the same kind; the first of each
// pair becomes pregnant. Returns the number of new pregnancies.
func (h *Herd) StartBreeding() int {
	byKind := make(map[string][]*Animal)
	for _, a := range h.sorted() {
		if a.Mature && !a.Pregnant && a.Health >= h.cfg.BreedingHealth {
			byKind[a.Kind] = append(byKind[a.Kind], a)
		}
	}

	now := h.clk.Now()
	started := 0
	for _, k := range h.cat.Animals {
		if k.GestationDays <= 0 {
			continue
		}
		eligible := byKind[k.Key]
		for i := 0; i+1 < len(eligible); i += 2 {
			mother := eligible[i]
			mother.Pregnant = true
			mother.GestationStart = now
			started++
			h.events.Emit("livestock", fmt.Sprintf("%s #%d is expecting (partner #%d)", k.Name, mother.ID, eligible[i+1].ID))
		}
	}
	return started
}

// Slaughter kills an animal and stocks its terminal products, scaled by its
// health.
func (h *Herd) Slaughter(id AnimalID) (map[string]float64, error) {
	a, ok := h.animals[id]
	if !ok {
		return nil, fmt.Errorf("slaughter animal %d: %w", id, economy.ErrNotFound)
	}
	return h.kill(a, "slaughtered"), nil
}

// Sell sells qty of an animal product, priced at its catalog price times
// the market multiplier.
func (h *Herd) Sell(product string, qty float64) (float64, error) {
	price, ok := h.cat.ProductPrice(product)
	if !ok {
		return 0, fmt.Errorf("sell %q: %w", product, economy.ErrUnknownKind)
	}
	if qty <= 0 || h.stock.Get(product) < qty {
		return 0, fmt.Errorf("sell %.2f %s (have %.2f): %w", qty, product, h.stock.Get(product), economy.ErrInsufficientInventory)
	}

	mult := 1.0
	if h.quoter != nil {
		mult = h.quoter.Multiplier(product, qty)
	}
	revenue := economy.Round(qty*price*mult, 2)

	h.stock.Consume(product, qty)
	h.wallet.Credit(revenue)
	h.ledger.RecordRevenue(revenue, economy.CategoryLivestockSales, fmt.Sprintf("sold %.2f %s", qty, product))
	return revenue, nil
}

// Tick ages the herd and runs health, maturity, gestation and production.
func (h *Herd) Tick(elapsed time.Duration) {
	if elapsed < 0 {
		elapsed = 0
	}
	now := h.clk.Now()
	mult := 1.0
	if h.weather != nil {
		mult = h.weather.Multipliers().AnimalProductivity
	}

	for _, a := range h.sorted() {
		k, ok := h.cat.Animal(a.Kind)
		if !ok {
			continue
		}
		age := a.AgeDays(now, h.cfg.DayLength)
		if age >= k.LifespanDays {
			h.kill(a, "old age")
			continue
		}

		h.updateHealth(a, k, now, elapsed)
		if a.Health <= 0 {
			h.kill(a, "malnutrition")
			continue
		}

		if !a.Mature && age >= k.MaturityDays {
			a.Mature = true
			a.LastProduction = now
			h.events.Emit("livestock", fmt.Sprintf("%s #%d reached maturity", k.Name, a.ID))
		}

		if a.Pregnant && now-a.GestationStart >= h.days(k.GestationDays) {
			h.giveBirth(a, k, now)
		}

		if a.Mature {
			h.produce(a, k, now, mult)
		}
	}
}

// updateHealth decays health over the part of this tick that lies past the
// feeding freshness window and regenerates it over the rest.
func (h *Herd) updateHealth(a *Animal, k catalog.AnimalKind, now, elapsed time.Duration) {
	freshUntil := a.LastFed + h.days(h.cfg.FreshDays)
	var overdue time.Duration
	if now > freshUntil {
		overdue = now - freshUntil
		if overdue > elapsed {
			overdue = elapsed
		}
	}
	fresh := elapsed - overdue

	day := float64(h.cfg.DayLength)
	a.Health -= k.HealthDecay * float64(overdue) / day
	a.Health += h.cfg.HealthRegenPerDay * float64(fresh) / day
	a.Health = economy.Clamp(a.Health, 0, 100)
}

func (h *Herd) produce(a *Animal, k catalog.AnimalKind, now time.Duration, mult float64) {
	since := now - a.LastProduction
	if since < h.cfg.ProductionInterval {
		return
	}
	a.LastProduction = now
	if a.Health <= h.cfg.ProductionHealth {
		return
	}

	days := float64(since) / float64(h.cfg.DayLength)
	for _, p := range k.Products {
		if p.DailyQuantity <= 0 {
			continue
		}
		qty := economy.Round(p.DailyQuantity*days*(a.Health/100)*mult, 2)
		if qty <= 0 {
			continue
		}
		h.stock.Credit(p.Key, qty)
		a.Produced[p.Key] += qty
	}
}

func (h *Herd) giveBirth(mother *Animal, k catalog.AnimalKind, now time.Duration) {
	mother.Pregnant = false
	mother.GestationStart = 0

	lo, hi := int(k.Litter.Min), int(k.Litter.Max)
	if lo < 1 {
		lo = 1
	}
	n := lo
	if hi > lo && h.rng != nil {
		n += h.rng.IntN(hi - lo + 1)
	}
	for i := 0; i < n; i++ {
		h.add(k.Key, now)
	}
	h.events.Emit("birth", fmt.Sprintf("%s #%d gave birth to %d", k.Name, mother.ID, n))
	slog.Info("livestock birth", "kind", k.Key, "mother", mother.ID, "offspring", n)
}

// kill removes a and stocks its terminal yield. Every cause of death pays
// out the same way.
func (h *Herd) kill(a *Animal, cause string) map[string]float64 {
	k, _ := h.cat.Animal(a.Kind)
	yields := make(map[string]float64)
	for _, p := range k.Products {
		if p.YieldOnDeath <= 0 {
			continue
		}
		qty := economy.Round(p.YieldOnDeath*a.Health/100, 2)
		if qty > 0 {
			h.stock.Credit(p.Key, qty)
			yields[p.Key] = qty
		}
	}

	a.Alive = false
	delete(h.animals, a.ID)
	h.events.Emit("death", fmt.Sprintf("%s #%d died: %s", k.Name, a.ID, cause))
	slog.Debug("animal died", "id", a.ID, "kind", a.Kind, "cause", cause, "yield", yields)
	return yields
}

func (h *Herd) sorted() []*Animal {
	out := make([]*Animal, 0, len(h.animals))
	for _, a := range h.animals {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Animal returns a copy of the animal with id.
func (h *Herd) Animal(id AnimalID) (Animal, bool) {
	a, ok := h.animals[id]
	if !ok {
		return Animal{}, false
	}
	return a.clone(), true
}

// Animals returns copies of every living animal ordered by id.
func (h *Herd) Animals() []Animal {
	out := make([]Animal, 0, len(h.animals))
	for _, a := range h.sorted() {
		out = append(out, a.clone())
	}
	return out
}

// Inventory exposes the livestock product stock to the market.
func (h *Herd) Inventory() economy.Inventory { return h.stock }

// Stats summarizes the herd.
type Stats struct {
	Heads         map[string]int `json:"heads"`
	Mature        int            `json:"mature"`
	Pregnant      int            `json:"pregnant"`
	AverageHealth float64        `json:"average_health"`
}

// Stats summarizes the herd.
func (h *Herd) Stats() Stats {
	s := Stats{Heads: make(map[string]int)}
	for _, a := range h.animals {
		s.Heads[a.Kind]++
		s.AverageHealth += a.Health
		if a.Mature {
			s.Mature++
		}
		if a.Pregnant {
			s.Pregnant++
		}
	}
	if n := len(h.animals); n > 0 {
		s.AverageHealth = economy.Round(s.AverageHealth/float64(n), 1)
	}
	return s
}

// State is the persisted form of the herd.
type State struct {
	Animals   []Animal           `json:"animals"`
	NextID    AnimalID           `json:"next_id"`
	Inventory map[string]float64 `json:"inventory"`
}

// State captures the herd for saving.
func (h *Herd) State() State {
	return State{Animals: h.Animals(), NextID: h.nextID, Inventory: h.stock.Snapshot()}
}

// Restore replaces the herd with a saved one.
func (h *Herd) Restore(s State) {
	h.animals = make(map[AnimalID]*Animal, len(s.Animals))
	for i := range s.Animals {
		a := s.Animals[i].clone()
		h.animals[a.ID] = &a
	}
	h.nextID = s.NextID
	if h.nextID == 0 {
		h.nextID = 1
	}
	h.stock.Restore(s.Inventory)
}
