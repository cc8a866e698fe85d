// Package machinery simulates the farm's machine fleet: field operations,
// fuel, wear, breakdowns, maintenance and upgrades.
package machinery

import "time"

// MachineID is a unique machine identifier. IDs are never reused.
type MachineID uint64

// Machine is one owned machine. Stats start at the kind's values and are
// changed by upgrades.
type Machine struct {
	ID                MachineID     `json:"id"`
	Kind              string        `json:"kind"`
	Durability        float64       `json:"durability"` // [0, 100]
	Efficiency        float64       `json:"efficiency"`
	Capacity          float64       `json:"capacity"`
	FuelCost          float64       `json:"fuel_cost"`
	WeatherResistance float64       `json:"weather_resistance"`
	Operational       bool          `json:"operational"`
	Upgrades          []string      `json:"upgrades"`
	Hours             float64       `json:"hours"`
	LastMaintenance   time.Duration `json:"last_maintenance"`
	LastWear          time.Duration `json:"last_wear"`
	PurchasedAt       time.Duration `json:"purchased_at"`
}

// HasUpgrade reports whether key is installed.
func (m Machine) HasUpgrade(key string) bool {
	for _, u := range m.Upgrades {
		if u == key {
			return true
		}
	}
	return false
}

func (m Machine) clone() Machine {
	c := m
	c.Upgrades = append([]string(nil), m.Upgrades...)
	return c
}

// OperationResult describes one completed field operation.
type OperationResult struct {
	Machine           MachineID `json:"machine"`
	Operation         string    `json:"operation"`
	Efficiency        float64   `json:"efficiency"`
	WeatherMultiplier float64   `json:"weather_multiplier"`
	Area              float64   `json:"area"`
	Bonus             float64   `json:"bonus"`
	FuelCost          float64   `json:"fuel_cost"`
	DurabilityLoss    float64   `json:"durability_loss"`
	BrokeDown         bool      `json:"broke_down"`
}
