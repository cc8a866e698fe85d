// Package processing runs the farm's factories, which turn harvested crops
// and animal products into processed goods for the market.
package processing

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/talgya/mini-farm/internal/catalog"
	"github.com/talgya/mini-farm/internal/clock"
	"github.com/talgya/mini-farm/internal/economy"
)

// FactoryID is a unique factory identifier.
type FactoryID uint64

// Batch is a production run in progress.
type Batch struct {
	Input     string        `json:"input"`
	Quantity  float64       `json:"quantity"`
	Output    string        `json:"output"`
	OutputQty float64       `json:"output_qty"`
	StartedAt time.Duration `json:"started_at"`
	ReadyAt   time.Duration `json:"ready_at"`
}

// Factory is one built processing plant.
type Factory struct {
	ID       FactoryID     `json:"id"`
	Kind     string        `json:"kind"`
	BuiltAt  time.Duration `json:"built_at"`
	Batch    *Batch        `json:"batch,omitempty"`
	Produced float64       `json:"produced"`
}

// Busy reports whether a batch is running.
func (f Factory) Busy() bool { return f.Batch != nil }

func (f Factory) clone() Factory {
	c := f
	if f.Batch != nil {
		b := *f.Batch
		c.Batch = &b
	}
	return c
}

// Deps are the collaborators of a Plant. Sources are drained in order when
// a batch needs raw goods.
type Deps struct {
	Catalog *catalog.Catalog
	Clock   clock.Clock
	Wallet  economy.Wallet
	Sources []economy.Inventory
	Stock   *economy.Stock
	Ledger  economy.Recorder
	Events  economy.EventSink
}

// Plant owns every factory and the processed goods inventory.
type Plant struct {
	cat     *catalog.Catalog
	clk     clock.Clock
	wallet  economy.Wallet
	sources []economy.Inventory
	stock   *economy.Stock
	ledger  economy.Recorder
	events  economy.EventSink

	factories map[FactoryID]*Factory
	nextID    FactoryID
}

// New creates a plant with no factories.
func New(d Deps) *Plant {
	stock := d.Stock
	if stock == nil {
		stock = economy.NewStock()
	}
	return &Plant{
		cat:       d.Catalog,
		clk:       d.Clock,
		wallet:    d.Wallet,
		sources:   d.Sources,
		stock:     stock,
		ledger:    economy.OrNop(d.Ledger),
		events:    economy.SinkOrNop(d.Events),
		factories: make(map[FactoryID]*Factory),
		nextID:    1,
	}
}

// Build constructs a factory of kind.
func (p *Plant) Build(kind string) (FactoryID, error) {
	k, ok := p.cat.Factory(kind)
	if !ok {
		return 0, fmt.Errorf("build factory %q: %w", kind, economy.ErrUnknownKind)
	}
	if !p.wallet.TrySpend(k.BuildCost) {
		return 0, fmt.Errorf("build %s (cost %.0f): %w", kind, k.BuildCost, economy.ErrInsufficientFunds)
	}

	f := &Factory{ID: p.nextID, Kind: kind, BuiltAt: p.clk.Now()}
	p.factories[f.ID] = f
	p.nextID++

	p.ledger.RecordExpense(k.BuildCost, economy.CategoryConstruction, "built "+k.Name)
	p.events.Emit("processing", fmt.Sprintf("%s #%d built", k.Name, f.ID))
	return f.ID, nil
}

// Start loads qty of input into factory id. The input is taken from the
// sources immediately.
func (p *Plant) Start(id FactoryID, input string, qty float64) error {
	f, ok := p.factories[id]
	if !ok {
		return fmt.Errorf("start factory %d: %w", id, economy.ErrNotFound)
	}
	if f.Busy() {
		return fmt.Errorf("start factory %d: %w", id, economy.ErrAlreadyActive)
	}
	k, _ := p.cat.Factory(f.Kind)
	if !k.Accepts(input) || qty <= 0 || qty > k.Capacity {
		return fmt.Errorf("process %.1f %s in %s (capacity %.0f): %w", qty, input, k.Key, k.Capacity, economy.ErrUnsupportedOperation)
	}
	if have := economy.Available(input, p.sources...); have < qty {
		return fmt.Errorf("process %.1f %s (have %.1f): %w", qty, input, have, economy.ErrInsufficientInventory)
	}

	economy.ConsumeInOrder(input, qty, p.sources...)
	now := p.clk.Now()
	f.Batch = &Batch{
		Input:     input,
		Quantity:  qty,
		Output:    k.Output,
		OutputQty: economy.Round(qty*k.ConversionRate, 2),
		StartedAt: now,
		ReadyAt:   now + k.ProcessingTime,
	}
	slog.Debug("batch started", "factory", id, "input", input, "qty", qty, "ready_at", f.Batch.ReadyAt)
	return nil
}

// Tick completes every batch whose time is up.
func (p *Plant) Tick(elapsed time.Duration) {
	now := p.clk.Now()
	for _, f := range p.sorted() {
		if f.Batch == nil || now < f.Batch.ReadyAt {
			continue
		}
		b := f.Batch
		p.stock.Credit(b.Output, b.OutputQty)
		f.Produced += b.OutputQty
		f.Batch = nil
		p.events.Emit("processing", fmt.Sprintf("factory #%d produced %.1f %s", f.ID, b.OutputQty, b.Output))
	}
}

func (p *Plant) sorted() []*Factory {
	out := make([]*Factory, 0, len(p.factories))
	for _, f := range p.factories {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Factory returns a copy of the factory with id.
func (p *Plant) Factory(id FactoryID) (Factory, bool) {
	f, ok := p.factories[id]
	if !ok {
		return Factory{}, false
	}
	return f.clone(), true
}

// Factories returns copies of every factory ordered by id.
func (p *Plant) Factories() []Factory {
	out := make([]Factory, 0, len(p.factories))
	for _, f := range p.sorted() {
		out = append(out, f.clone())
	}
	return out
}

// Inventory exposes the processed goods to the market.
func (p *Plant) Inventory() economy.Inventory { return p.stock }

// State is the persisted form of the plant.
type State struct {
	Factories []Factory          `json:"factories"`
	NextID    FactoryID          `json:"next_id"`
	Inventory map[string]float64 `json:"inventory"`
}

func (p *Plant) State() State {
	return State{Factories: p.Factories(), NextID: p.nextID, Inventory: p.stock.Snapshot()}
}

func (p *Plant) Restore(s State) {
	p.factories = make(map[FactoryID]*Factory, len(s.Factories))
	for i := range s.Factories {
		f := s.Factories[i].clone()
		p.factories[f.ID] = &f
	}
	p.nextID = s.NextID
	if p.nextID == 0 {
		p.nextID = 1
	}
	p.stock.Restore(s.Inventory)
}
