package machinery

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
	"github.com/talgya/mini-farm/internal/entropy"
	"github.com/talgya/mini-farm/internal/weather"
)

const (
	fullDurability = 100
	monthDays      = 30
)

// Weather is the part of the weather engine machines read.
type Weather interface {
	Multipliers() weather.Multipliers
}

// FieldWork receives the crop bonus of a completed operation.
type FieldWork interface {
	ApplyFieldWork(operation string, bonus float64)
}

// Deps are the collaborators of a Fleet.
type Deps struct {
	Catalog   *catalog.Catalog
	Balance   config.Machinery
	Clock     clock.Clock
	Wallet    economy.Wallet
	Weather   Weather
	Rand      entropy.Source
	FieldWork FieldWork
	Ledger    economy.Recorder
	Events    economy.EventSink
}

// Fleet owns every machine.
type Fleet struct {
	cat     *catalog.Catalog
	cfg     config.Machinery
	clk     clock.Clock
	wallet  economy.Wallet
	weather Weather
	rng     entropy.Source
	field   FieldWork
	ledger  economy.Recorder
	events  economy.EventSink

	machines      map[MachineID]*Machine
	nextID        MachineID
	lastBilling   time.Duration
	slowdown      float64
	slowdownUntil time.Duration
}

// New creates an empty fleet.
func New(d Deps) *Fleet {
	return &Fleet{
		cat:         d.Catalog,
		cfg:         d.Balance,
		clk:         d.Clock,
		wallet:      d.Wallet,
		weather:     d.Weather,
		rng:         d.Rand,
		field:       d.FieldWork,
		ledger:      economy.OrNop(d.Ledger),
		events:      economy.SinkOrNop(d.Events),
		machines:    make(map[MachineID]*Machine),
		nextID:      1,
		lastBilling: d.Clock.Now(),
	}
}

func (f *Fleet) days(n float64) time.Duration {
	return time.Duration(n * float64(f.cfg.Day))
}

// Buy purchases a new machine of kind.
func (f *Fleet) Buy(kind string) (MachineID, error) {
	k, ok := f.cat.Machine(kind)
	if !ok {
		return 0, fmt.Errorf("buy machine %q: %w", kind, economy.ErrUnknownKind)
	}
	if !f.wallet.TrySpend(k.Cost) {
		return 0, fmt.Errorf("buy %s (cost %.0f): %w", kind, k.Cost, economy.ErrInsufficientFunds)
	}

	now := f.clk.Now()
	m := &Machine{
		ID:                f.nextID,
		Kind:              kind,
		Durability:        fullDurability,
		Efficiency:        k.Efficiency,
		Capacity:          k.Capacity,
		FuelCost:          k.FuelCost,
		WeatherResistance: k.WeatherResistance,
		Operational:       true,
		LastMaintenance:   now,
		LastWear:          now,
		PurchasedAt:       now,
	}
	f.machines[m.ID] = m
	f.nextID++

	f.ledger.RecordExpense(k.Cost, economy.CategoryConstruction, "bought "+k.Name)
	slog.Debug("machine bought", "id", m.ID, "kind", kind)
	return m.ID, nil
}

func (f *Fleet) supports(m *Machine, k catalog.MachineKind, op string) bool {
	if k.Supports(op) {
		return true
	}
	for _, key := range m.Upgrades {
		u, ok := k.Upgrade(key)
		if !ok {
			continue
		}
		for _, extra := range u.Operations {
			if extra == op {
				return true
			}
		}
	}
	return false
}

// Use runs one operation with machine id. Fuel is paid up front; the crop
// bonus is handed to the field.
func (f *Fleet) Use(id MachineID, operation string) (OperationResult, error) {
	m, ok := f.machines[id]
	if !ok {
		return OperationResult{}, fmt.Errorf("use machine %d: %w", id, economy.ErrNotFound)
	}
	if !m.Operational {
		return OperationResult{}, fmt.Errorf("use machine %d: %w", id, economy.ErrNotOperational)
	}
	k, _ := f.cat.Machine(m.Kind)
	op, known := f.cat.Operation(operation)
	if !known || !f.supports(m, k, operation) {
		return OperationResult{}, fmt.Errorf("use %s #%d for %q: %w", m.Kind, id, operation, economy.ErrUnsupportedOperation)
	}
	hours := f.cfg.HoursPerUse
	fuel := economy.Round(m.FuelCost*hours, 2)
	if !f.wallet.TrySpend(fuel) {
		return OperationResult{}, fmt.Errorf("fuel for %s #%d (cost %.2f): %w", m.Kind, id, fuel, economy.ErrInsufficientFunds)
	}

	now := f.clk.Now()
	wm := f.weatherMultiplier(m)
	eff := m.Efficiency * wm
	if now < f.slowdownUntil && f.slowdown > 0 {
		eff *= f.slowdown
	}
	loss := f.durabilityLoss(m, wm, hours, now)
	m.Durability = economy.Clamp(m.Durability-loss, 0, fullDurability)
	m.Hours += hours

	res := OperationResult{
		Machine:           id,
		Operation:         operation,
		Efficiency:        eff,
		WeatherMultiplier: wm,
		Area:              economy.Round(m.Capacity*eff*op.AreaFactor, 2),
		Bonus:             op.Bonus,
		FuelCost:          fuel,
		DurabilityLoss:    loss,
		BrokeDown:         f.checkBreakdown(m, k),
	}
	if f.field != nil {
		f.field.ApplyFieldWork(operation, op.Bonus)
	}
	if fuel > 0 {
		f.ledger.RecordExpense(fuel, economy.CategoryFuel, fmt.Sprintf("%s #%d: %s", k.Name, id, operation))
	}
	slog.Debug("machine used", "id", id, "operation", operation, "efficiency", eff, "durability", m.Durability)
	return res, nil
}

// weatherMultiplier folds the machine's resistance into the weather's raw
// efficiency penalty.
func (f *Fleet) weatherMultiplier(m *Machine) float64 {
	raw := 1.0
	if f.weather != nil {
		raw = f.weather.Multipliers().MachineEfficiency
	}
	resisted := (1 - raw) * (1 - m.WeatherResistance)
	return economy.Clamp(1-resisted, f.cfg.WeatherFloor, f.cfg.WeatherCeiling)
}

func (f *Fleet) durabilityLoss(m *Machine, wm, hours float64, now time.Duration) float64 {
	loss := f.cfg.BaseWear * hours * (2 - wm)
	ageMonths := float64(now-m.PurchasedAt) / float64(f.days(monthDays))
	loss *= 1 + ageMonths*f.cfg.AgeWearFactor
	if now-m.LastMaintenance > f.days(f.cfg.StaleAfterDays) {
		loss *= f.cfg.StaleFactor
	}
	return loss
}

// checkBreakdown takes m out of service once durability drops below the
// threshold. It reports whether this call caused the breakdown.
func (f *Fleet) checkBreakdown(m *Machine, k catalog.MachineKind) bool {
	if !m.Operational || m.Durability >= f.cfg.BreakdownThreshold {
		return false
	}
	m.Operational = false
	f.events.Emit("machinery", fmt.Sprintf("%s #%d broke down and needs repair", k.Name, m.ID))
	slog.Info("machine broke down", "id", m.ID, "kind", m.Kind, "durability", m.Durability)
	return true
}

// Repair restores full durability and puts the machine back in service.
func (f *Fleet) Repair(id MachineID) error {
	m, ok := f.machines[id]
	if !ok {
		return fmt.Errorf("repair machine %d: %w", id, economy.ErrNotFound)
	}
	k, _ := f.cat.Machine(m.Kind)
	if !f.wallet.TrySpend(k.RepairCost) {
		return fmt.Errorf("repair %s #%d (cost %.0f): %w", m.Kind, id, k.RepairCost, economy.ErrInsufficientFunds)
	}
	m.Durability = fullDurability
	m.Operational = true
	m.LastMaintenance = f.clk.Now()
	f.ledger.RecordExpense(k.RepairCost, economy.CategoryMaintenance, fmt.Sprintf("repaired %s #%d", k.Name, id))
	return nil
}

// Upgrade installs an upgrade. Each upgrade can be installed once.
func (f *Fleet) Upgrade(id MachineID, key string) error {
	m, ok := f.machines[id]
	if !ok {
		return fmt.Errorf("upgrade machine %d: %w", id, economy.ErrNotFound)
	}
	k, _ := f.cat.Machine(m.Kind)
	u, ok := k.Upgrade(key)
	if !ok {
		return fmt.Errorf("upgrade %s with %q: %w", m.Kind, key, economy.ErrUnknownKind)
	}
	if m.HasUpgrade(key) {
		return fmt.Errorf("upgrade %s #%d with %s: %w", m.Kind, id, key, economy.ErrAlreadyInstalled)
	}
	if !f.wallet.TrySpend(u.Cost) {
		return fmt.Errorf("upgrade %s #%d with %s (cost %.0f): %w", m.Kind, id, key, u.Cost, economy.ErrInsufficientFunds)
	}

	m.Upgrades = append(m.Upgrades, key)
	m.Efficiency += u.Efficiency
	m.Capacity += u.Capacity
	if u.Fuel != 0 {
		m.FuelCost = economy.Round(m.FuelCost*(1+u.Fuel), 4)
	}
	m.WeatherResistance = math.Min(f.cfg.MaxWeatherResistance, m.WeatherResistance+u.WeatherResistance)

	f.ledger.RecordExpense(u.Cost, economy.CategoryConstruction, fmt.Sprintf("%s #%d: %s", k.Name, id, u.Name))
	f.events.Emit("machinery", fmt.Sprintf("%s #%d upgraded with %s", k.Name, id, u.Name))
	return nil
}

// Tick bills scheduled maintenance and applies daily natural wear.
func (f *Fleet) Tick(elapsed time.Duration) {
	now := f.clk.Now()
	period := f.days(f.cfg.MaintenanceEvery)
	for period > 0 && now-f.lastBilling >= period {
		f.lastBilling += period
		f.wear(f.lastBilling)
		f.billMaintenance(f.lastBilling)
	}
	f.wear(now)
}

// wear applies natural wear for every whole day up to at.
func (f *Fleet) wear(at time.Duration) {
	if f.cfg.Day <= 0 {
		return
	}
	for _, m := range f.sorted() {
		whole := math.Floor(float64(at-m.LastWear) / float64(f.cfg.Day))
		if whole < 1 {
			continue
		}
		m.Durability = economy.Clamp(m.Durability-f.cfg.DailyWear*whole, 0, fullDurability)
		m.LastWear += time.Duration(whole) * f.cfg.Day
		k, _ := f.cat.Machine(m.Kind)
		f.checkBreakdown(m, k)
	}
}

// billMaintenance charges each machine its monthly upkeep. Machines that
// cannot be paid for lose durability instead.
func (f *Fleet) billMaintenance(now time.Duration) {
	total := 0.0
	skipped := 0
	for _, m := range f.sorted() {
		k, _ := f.cat.Machine(m.Kind)
		if f.wallet.TrySpend(k.MaintenanceCost) {
			m.Durability = math.Min(fullDurability, m.Durability+f.cfg.MaintenanceRestore)
			m.LastMaintenance = now
			total += k.MaintenanceCost
			continue
		}
		m.Durability = math.Max(0, m.Durability-f.cfg.MaintenancePenalty)
		f.checkBreakdown(m, k)
		skipped++
	}
	if total > 0 {
		f.ledger.RecordExpense(total, economy.CategoryMaintenance, "monthly machine maintenance")
	}
	if skipped > 0 {
		f.events.Emit("machinery", fmt.Sprintf("maintenance skipped on %d machines", skipped))
		slog.Warn("machine maintenance unpaid", "machines", skipped)
	}
}

// ApplyWeatherDamage hits each machine with probability chance.
func (f *Fleet) ApplyWeatherDamage(chance float64) {
	if f.rng == nil {
		return
	}
	for _, m := range f.sorted() {
		if !entropy.Chance(f.rng, chance) {
			continue
		}
		damage := entropy.Between(f.rng, f.cfg.WeatherDamage[0], f.cfg.WeatherDamage[1])
		m.Durability = math.Max(0, m.Durability-damage)
		k, _ := f.cat.Machine(m.Kind)
		f.events.Emit("weather", fmt.Sprintf("%s #%d damaged by the weather (-%.0f)", k.Name, m.ID, damage))
		f.checkBreakdown(m, k)
	}
}

// ApplySnowSlowdown scales machine efficiency by factor for d.
func (f *Fleet) ApplySnowSlowdown(factor float64, d time.Duration) {
	f.slowdown = factor
	f.slowdownUntil = f.clk.Now() + d
}

func (f *Fleet) sorted() []*Machine {
	out := make([]*Machine, 0, len(f.machines))
	for _, m := range f.machines {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Machine returns a copy of the machine with id.
func (f *Fleet) Machine(id MachineID) (Machine, bool) {
	m, ok := f.machines[id]
	if !ok {
		return Machine{}, false
	}
	return m.clone(), true
}

// Machines returns copies of every machine ordered by id.
func (f *Fleet) Machines() []Machine {
	out := make([]Machine, 0, len(f.machines))
	for _, m := range f.sorted() {
		out = append(out, m.clone())
	}
	return out
}

// Stats summarizes the fleet.
type Stats struct {
	Count             int     `json:"count"`
	Operational       int     `json:"operational"`
	AverageDurability float64 `json:"average_durability"`
	MonthlyUpkeep     float64 `json:"monthly_upkeep"`
}

func (f *Fleet) Stats() Stats {
	var s Stats
	for _, m := range f.machines {
		s.Count++
		if m.Operational {
			s.Operational++
		}
		s.AverageDurability += m.Durability
		if k, ok := f.cat.Machine(m.Kind); ok {
			s.MonthlyUpkeep += k.MaintenanceCost
		}
	}
	if s.Count > 0 {
		s.AverageDurability = economy.Round(s.AverageDurability/float64(s.Count), 1)
	}
	return s
}

// State is the persisted form of the fleet.
type State struct {
	Machines      []Machine     `json:"machines"`
	NextID        MachineID     `json:"next_id"`
	LastBilling   time.Duration `json:"last_billing"`
	Slowdown      float64       `json:"slowdown"`
	SlowdownUntil time.Duration `json:"slowdown_until"`
}

// State captures the fleet for saving.
func (f *Fleet) State() State {
	return State{
		Machines:      f.Machines(),
		NextID:        f.nextID,
		LastBilling:   f.lastBilling,
		Slowdown:      f.slowdown,
		SlowdownUntil: f.slowdownUntil,
	}
}

// Restore replaces the fleet with a saved one.
func (f *Fleet) Restore(s State) {
	f.machines = make(map[MachineID]*Machine, len(s.Machines))
	for i := range s.Machines {
		m := s.Machines[i].clone()
		f.machines[m.ID] = &m
	}
	f.nextID = s.NextID
	if f.nextID == 0 {
		f.nextID = 1
	}
	f.lastBilling = s.LastBilling
	f.slowdown = s.Slowdown
	f.slowdownUntil = s.SlowdownUntil
}
