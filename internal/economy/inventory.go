package economy

import "sort"

// Inventory is the accessor contract a producer exposes to the market.
type Inventory interface {
	Get(key string) float64
	// Consume removes up to qty and returns the amount actually removed.
	Consume(key string, qty float64) float64
	Credit(key string, qty float64)
}

// Stock is a map-backed Inventory owned by one producing subsystem.
type Stock struct {
	items map[string]float64
}

// NewStock returns an empty stock.
func NewStock() *Stock {
	return &Stock{items: make(map[string]float64)}
}

func (s *Stock) Get(key string) float64 {
	return s.items[key]
}

func (s *Stock) Consume(key string, qty float64) float64 {
	if qty <= 0 {
		return 0
	}
	have := s.items[key]
	taken := qty
	if taken > have {
		taken = have
	}
	left := Round(have-taken, 4)
	if left <= 0 {
		delete(s.items, key)
	} else {
		s.items[key] = left
	}
	return taken
}

func (s *Stock) Credit(key string, qty float64) {
	if qty <= 0 {
		return
	}
	s.items[key] = Round(s.items[key]+qty, 4)
}

// Keys returns the stocked keys in sorted order.
func (s *Stock) Keys() []string {
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot copies the stock contents.
func (s *Stock) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(s.items))
	for k, v := range s.items {
		out[k] = v
	}
	return out
}

// Restore replaces the stock contents.
func (s *Stock) Restore(items map[string]float64) {
	s.items = make(map[string]float64, len(items))
	for k, v := range items {
		if v > 0 {
			s.items[k] = v
		}
	}
}

// Available sums key across several inventories.
func Available(key string, invs ...Inventory) float64 {
	total := 0.0
	for _, inv := range invs {
		total += inv.Get(key)
	}
	return total
}

// ConsumeInOrder takes qty of key from invs in the given priority order. The
// caller must have checked Available first; the amount actually taken is
// returned.
func ConsumeInOrder(key string, qty float64, invs ...Inventory) float64 {
	taken := 0.0
	for _, inv := range invs {
		if taken >= qty {
			break
		}
		taken += inv.Consume(key, qty-taken)
	}
	return taken
}
