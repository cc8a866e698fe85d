package market

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/talgya/mini-farm/internal/economy"
	"github.com/talgya/mini-farm/internal/entropy"
)

// ContractID is a unique contract identifier.
type ContractID uint64

// Contract is a client's offer to buy a fixed quantity at an agreed price.
// A pending contract can be accepted until its deadline; an accepted one
// has already delivered and waits for payment.
type Contract struct {
	ID         ContractID    `json:"id"`
	Client     string        `json:"client"`
	Commodity  string        `json:"commodity"`
	Quantity   float64       `json:"quantity"`
	Price      float64       `json:"price"` // per unit
	Value      float64       `json:"value"`
	CreatedAt  time.Duration `json:"created_at"`
	Deadline   time.Duration `json:"deadline"`
	Active     bool          `json:"active"`
	AcceptedAt time.Duration `json:"accepted_at"`
	PaymentDue time.Duration `json:"payment_due"`
	Late       bool          `json:"late"`
}

// Propose registers an offer from client for qty of commodity, open for
// the given window. The unit price is the current price adjusted by the
// client's multiplier.
func (m *Market) Propose(client, commodity string, qty float64, window time.Duration) (ContractID, error) {
	cl, ok := m.cat.Client(client)
	if !ok {
		return 0, fmt.Errorf("propose contract from %q: %w", client, economy.ErrUnknownKind)
	}
	r, ok := m.byKey[commodity]
	if !ok {
		return 0, fmt.Errorf("propose contract for %q: %w", commodity, economy.ErrUnknownKind)
	}
	if qty <= 0 || window <= 0 {
		return 0, fmt.Errorf("propose %.0f %s within %s: %w", qty, commodity, window, economy.ErrUnsupportedOperation)
	}

	now := m.clk.Now()
	price := economy.Round(r.price*cl.PriceMultiplier, 4)
	c := &Contract{
		ID:        m.nextContract,
		Client:    client,
		Commodity: commodity,
		Quantity:  qty,
		Price:     price,
		Value:     economy.Round(qty*price, 2),
		CreatedAt: now,
		Deadline:  now + window,
	}
	m.contracts[c.ID] = c
	m.nextContract++

	m.events.Emit("market", fmt.Sprintf("%s offers %.2f for %.0f %s", cl.Name, c.Value, qty, r.kind.Name))
	return c.ID, nil
}

// generateContract offers a random client contract. late is how long ago the
// generator run was due; it is taken off the deadline window.
func (m *Market) generateContract(late time.Duration) {
	if len(m.cat.Clients) == 0 {
		return
	}
	cl := m.cat.Clients[m.rng.IntN(len(m.cat.Clients))]
	if len(cl.Preferred) == 0 {
		return
	}
	commodity := cl.Preferred[m.rng.IntN(len(cl.Preferred))]
	qty := math.Floor(entropy.Between(m.rng, m.cfg.ContractQuantity[0], m.cfg.ContractQuantity[1]))
	qty = math.Round(qty * cl.VolumeMultiplier)
	window := m.days(entropy.Between(m.rng, m.cfg.ContractDeadline[0], m.cfg.ContractDeadline[1])) - late
	if window <= 0 {
		return
	}

	if _, err := m.Propose(cl.Key, commodity, qty, window); err != nil {
		slog.Warn("contract generation failed", "client", cl.Key, "commodity", commodity, "err", err)
	}
}

// Accept delivers the contract's goods now. Payment follows after the
// client's delay.
func (m *Market) Accept(id ContractID) error {
	c, ok := m.contracts[id]
	if !ok {
		return fmt.Errorf("accept contract %d: %w", id, economy.ErrNotFound)
	}
	if c.Active {
		return fmt.Errorf("accept contract %d: %w", id, economy.ErrAlreadyActive)
	}
	if have := m.Available(c.Commodity); have < c.Quantity {
		return fmt.Errorf("deliver %.0f %s (have %.2f): %w", c.Quantity, c.Commodity, have, economy.ErrInsufficientInventory)
	}

	cl, _ := m.cat.Client(c.Client)
	now := m.clk.Now()
	economy.ConsumeInOrder(c.Commodity, c.Quantity, m.invs...)
	c.Active = true
	c.AcceptedAt = now
	c.PaymentDue = now + m.days(cl.PaymentDelayDays)

	m.events.Emit("market", fmt.Sprintf("contract #%d accepted with %s", id, cl.Name))
	slog.Debug("contract accepted", "id", id, "client", c.Client, "value", c.Value, "payment_due", c.PaymentDue)
	return nil
}

// settle pays due contracts. An unreliable client pays late, once, at a
// discount.
func (m *Market) settle(now time.Duration) {
	for _, c := range m.sortedContracts() {
		if !c.Active || now < c.PaymentDue {
			continue
		}
		cl, _ := m.cat.Client(c.Client)
		if c.Late {
			amount := economy.Round(c.Value*m.cfg.LateDiscount, 2)
			m.pay(c, amount, fmt.Sprintf("late payment from %s for contract #%d", cl.Name, c.ID))
			continue
		}
		if entropy.Chance(m.rng, cl.Reliability) {
			m.pay(c, c.Value, fmt.Sprintf("payment from %s for contract #%d", cl.Name, c.ID))
			continue
		}
		c.Late = true
		c.PaymentDue = now + m.days(cl.PaymentDelayDays)
		m.events.Emit("market", fmt.Sprintf("%s is late paying contract #%d", cl.Name, c.ID))
	}
}

func (m *Market) pay(c *Contract, amount float64, description string) {
	m.wallet.Credit(amount)
	m.ledger.RecordRevenue(amount, economy.CategoryContracts, description)
	m.events.Emit("market", description)
	delete(m.contracts, c.ID)
}

func (m *Market) purge(now time.Duration) {
	for id, c := range m.contracts {
		if !c.Active && now > c.Deadline {
			delete(m.contracts, id)
			slog.Debug("contract expired", "id", id)
		}
	}
}

func (m *Market) pending() int {
	n := 0
	for _, c := range m.contracts {
		if !c.Active {
			n++
		}
	}
	return n
}

func (m *Market) sortedContracts() []*Contract {
	out := make([]*Contract, 0, len(m.contracts))
	for _, c := range m.contracts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Contract returns a copy of the contract with id.
func (m *Market) Contract(id ContractID) (Contract, bool) {
	c, ok := m.contracts[id]
	if !ok {
		return Contract{}, false
	}
	return *c, true
}

// Contracts returns pending and unpaid contracts ordered by id.
func (m *Market) Contracts() []Contract {
	out := make([]Contract, 0, len(m.contracts))
	for _, c := range m.sortedContracts() {
		out = append(out, *c)
	}
	return out
}

// State is the persisted form of the market.
type State struct {
	Prices          []PriceRecord `json:"prices"`
	Contracts       []Contract    `json:"contracts"`
	NextContract    ContractID    `json:"next_contract"`
	LastPriceUpdate time.Duration `json:"last_price_update"`
	LastContractRun time.Duration `json:"last_contract_run"`
}

// State captures the market for saving.
func (m *Market) State() State {
	return State{
		Prices:          m.Prices(),
		Contracts:       m.Contracts(),
		NextContract:    m.nextContract,
		LastPriceUpdate: m.lastPriceUpdate,
		LastContractRun: m.lastContractRun,
	}
}

// Restore replaces prices and contracts with saved ones. Commodities the
// save does not mention keep their current record.
func (m *Market) Restore(s State) {
	for _, p := range s.Prices {
		r, ok := m.byKey[p.Commodity]
		if !ok {
			continue
		}
		r.price = p.Price
		r.demand = p.Demand
		r.supply = p.Supply
		r.history = newRing(m.cfg.HistoryLength)
		for _, v := range p.History {
			r.history.push(v)
		}
	}
	m.contracts = make(map[ContractID]*Contract, len(s.Contracts))
	for i := range s.Contracts {
		c := s.Contracts[i]
		m.contracts[c.ID] = &c
	}
	m.nextContract = s.NextContract
	if m.nextContract == 0 {
		m.nextContract = 1
	}
	m.lastPriceUpdate = s.LastPriceUpdate
	m.lastContractRun = s.LastContractRun
}
