// Package catalog holds the static kind tables of the farm: seasons, weather
// kinds, crops, animals, machines, commodities, market clients and
// factories.
//
// A Catalog is loaded once at startup and passed by pointer into every
// subsystem constructor. Nothing mutates it afterwards.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

// Season is one quarter of the farming year.
type Season string

const (
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
	Winter Season = "winter"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// SeasonInfo carries the season-wide production bonuses.
type SeasonInfo struct {
	Key                     Season  `yaml:"key"`
	Name                    string  `yaml:"name"`
	CropGrowthBonus         float64 `yaml:"crop_growth_bonus"`
	AnimalProductivityBonus float64 `yaml:"animal_productivity_bonus"`
	AverageTemperature      float64 `yaml:"average_temperature"`
}

// WeatherKind is one state of the weather machine.
type WeatherKind struct {
	Key                string             `yaml:"key"`
	Name               string             `yaml:"name"`
	CropGrowth         float64            `yaml:"crop_growth"`
	AnimalProductivity float64            `yaml:"animal_productivity"`
	MachineEfficiency  float64            `yaml:"machine_efficiency"`
	MarketPrice        float64            `yaml:"market_price"`
	Probability        map[Season]float64 `yaml:"probability"`
	Transitions        []string           `yaml:"transitions"`
	Temperature        Range              `yaml:"temperature"`
	Humidity           Range              `yaml:"humidity"`
	Damaging           bool               `yaml:"damaging"`
}

// ValidIn reports whether the kind can occur in season s.
func (w WeatherKind) ValidIn(s Season) bool {
	return w.Probability[s] > 0
}

// CropKind describes a plantable crop.
type CropKind struct {
	Key            string             `yaml:"key"`
	Name           string             `yaml:"name"`
	Cost           float64            `yaml:"cost"`
	GrowthDuration time.Duration      `yaml:"growth_duration"`
	BaseYield      float64            `yaml:"base_yield"`
	BasePrice      float64            `yaml:"base_price"`
	Sensitivity    map[string]float64 `yaml:"sensitivity"` // weather kind -> multiplier
}

// Product is something an animal yields, either daily or once at death.
type Product struct {
	Key              string  `yaml:"key"` // inventory and commodity key
	Name             string  `yaml:"name"`
	DailyQuantity    float64 `yaml:"daily_quantity"`
	YieldOnDeath     float64 `yaml:"yield_on_death"`
	Price            float64 `yaml:"price"`
	RequiresMaturity bool    `yaml:"requires_maturity"`
}

// AnimalKind describes a livestock species. Durations are in farm days.
type AnimalKind struct {
	Key           string    `yaml:"key"`
	Name          string    `yaml:"name"`
	Cost          float64   `yaml:"cost"`
	FeedCost      float64   `yaml:"feed_cost"`
	MaturityDays  float64   `yaml:"maturity_days"`
	LifespanDays  float64   `yaml:"lifespan_days"`
	HealthDecay   float64   `yaml:"health_decay"` // per overdue day
	GestationDays float64   `yaml:"gestation_days"`
	Litter        Range     `yaml:"litter"`
	Products      []Product `yaml:"products"`
}

// Product looks up one of the kind's products.
func (a AnimalKind) Product(key string) (Product, bool) {
	for _, p := range a.Products {
		if p.Key == key {
			return p, true
		}
	}
	return Product{}, false
}

// Upgrade is an installable machine improvement. Efficiency, Capacity and
// WeatherResistance are additive; Fuel is a relative change of fuel cost.
// Operations extends the machine's capability set.
type Upgrade struct {
	Key               string   `yaml:"key"`
	Name              string   `yaml:"name"`
	Cost              float64  `yaml:"cost"`
	Efficiency        float64  `yaml:"efficiency"`
	Capacity          float64  `yaml:"capacity"`
	Fuel              float64  `yaml:"fuel"`
	WeatherResistance float64  `yaml:"weather_resistance"`
	Operations        []string `yaml:"operations"`
}

// MachineKind describes a purchasable machine.
type MachineKind struct {
	Key               string    `yaml:"key"`
	Name              string    `yaml:"name"`
	Cost              float64   `yaml:"cost"`
	MaintenanceCost   float64   `yaml:"maintenance_cost"` // per month
	FuelCost          float64   `yaml:"fuel_cost"`        // per operating hour
	Efficiency        float64   `yaml:"efficiency"`
	Capacity          float64   `yaml:"capacity"`
	RepairCost        float64   `yaml:"repair_cost"`
	WeatherResistance float64   `yaml:"weather_resistance"`
	Operations        []string  `yaml:"operations"`
	Upgrades          []Upgrade `yaml:"upgrades"`
}

// Supports reports whether op is in the machine's capability set.
func (m MachineKind) Supports(op string) bool {
	for _, o := range m.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Upgrade looks up one of the kind's upgrades.
func (m MachineKind) Upgrade(key string) (Upgrade, bool) {
	for _, u := range m.Upgrades {
		if u.Key == key {
			return u, true
		}
	}
	return Upgrade{}, false
}

// Operation is a field job a machine can perform.
type Operation struct {
	Key        string  `yaml:"key"`
	AreaFactor float64 `yaml:"area_factor"`
	Bonus      float64 `yaml:"bonus"` // crop condition multiplier
}

// Group is the revenue category a commodity is booked under.
type Group string

const (
	GroupCrop      Group = "crop"
	GroupLivestock Group = "livestock"
	GroupProcessed Group = "processed"
)

// Commodity is a tradable good on the market.
type Commodity struct {
	Key        string             `yaml:"key"`
	Name       string             `yaml:"name"`
	Group      Group              `yaml:"group"`
	BasePrice  float64            `yaml:"base_price"`
	Volatility float64            `yaml:"volatility"`
	Seasonal   map[Season]float64 `yaml:"seasonal"`
	Weather    map[string]float64 `yaml:"weather"`
}

// SeasonalFactor returns the price factor for season s, 1.0 if none.
func (c Commodity) SeasonalFactor(s Season) float64 {
	if f, ok := c.Seasonal[s]; ok {
		return f
	}
	return 1.0
}

// WeatherFactor returns the price factor for a weather kind, 1.0 if none.
func (c Commodity) WeatherFactor(kind string) float64 {
	if f, ok := c.Weather[kind]; ok {
		return f
	}
	return 1.0
}

// Client is a contract counterparty profile.
type Client struct {
	Key              string   `yaml:"key"`
	Name             string   `yaml:"name"`
	Reliability      float64  `yaml:"reliability"`
	PaymentDelayDays float64  `yaml:"payment_delay_days"`
	Preferred        []string `yaml:"preferred"`
	VolumeMultiplier float64  `yaml:"volume_multiplier"`
	PriceMultiplier  float64  `yaml:"price_multiplier"`
}

// FactoryKind turns raw goods into a processed good.
type FactoryKind struct {
	Key            string        `yaml:"key"`
	Name           string        `yaml:"name"`
	BuildCost      float64       `yaml:"build_cost"`
	Inputs         []string      `yaml:"inputs"`
	Output         string        `yaml:"output"`
	ConversionRate float64       `yaml:"conversion_rate"`
	ProcessingTime time.Duration `yaml:"processing_time"`
	Capacity       float64       `yaml:"capacity"` // max input per batch
}

// Accepts reports whether input can be processed by this factory.
func (f FactoryKind) Accepts(input string) bool {
	for _, in := range f.Inputs {
		if in == input {
			return true
		}
	}
	return false
}

// Catalog is the full set of static tables. Slices keep the declaration
// order, which is the iteration order used by every random choice.
type Catalog struct {
	Seasons     []SeasonInfo  `yaml:"seasons"`
	Weather     []WeatherKind `yaml:"weather"`
	Crops       []CropKind    `yaml:"crops"`
	Animals     []AnimalKind  `yaml:"animals"`
	Machines    []MachineKind `yaml:"machines"`
	Operations  []Operation   `yaml:"operations"`
	Commodities []Commodity   `yaml:"commodities"`
	Clients     []Client      `yaml:"clients"`
	Factories   []FactoryKind `yaml:"factories"`

	seasons     map[Season]int
	weather     map[string]int
	crops       map[string]int
	animals     map[string]int
	machines    map[string]int
	operations  map[string]int
	commodities map[string]int
	clients     map[string]int
	factories   map[string]int
}

// Default returns the built-in catalog. It panics if the embedded tables are
// malformed, which can only happen at build time.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultYAML))
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded tables: %v", err))
	}
	return c
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a catalog.
func Load(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	var err error
	build := func(table string, n int, key func(i int) string) map[string]int {
		m := make(map[string]int, n)
		for i := 0; i < n; i++ {
			k := key(i)
			if k == "" {
				err = fmt.Errorf("catalog: %s entry %d has no key", table, i)
			}
			if _, dup := m[k]; dup {
				err = fmt.Errorf("catalog: duplicate %s key %q", table, k)
			}
			m[k] = i
		}
		return m
	}

	seasons := build("season", len(c.Seasons), func(i int) string { return string(c.Seasons[i].Key) })
	c.seasons = make(map[Season]int, len(seasons))
	for k, i := range seasons {
		c.seasons[Season(k)] = i
	}
	c.weather = build("weather", len(c.Weather), func(i int) string { return c.Weather[i].Key })
	c.crops = build("crop", len(c.Crops), func(i int) string { return c.Crops[i].Key })
	c.animals = build("animal", len(c.Animals), func(i int) string { return c.Animals[i].Key })
	c.machines = build("machine", len(c.Machines), func(i int) string { return c.Machines[i].Key })
	c.operations = build("operation", len(c.Operations), func(i int) string { return c.Operations[i].Key })
	c.commodities = build("commodity", len(c.Commodities), func(i int) string { return c.Commodities[i].Key })
	c.clients = build("client", len(c.Clients), func(i int) string { return c.Clients[i].Key })
	c.factories = build("factory", len(c.Factories), func(i int) string { return c.Factories[i].Key })
	if err != nil {
		return err
	}
	return c.validate()
}

func (c *Catalog) validate() error {
	if len(c.Seasons) == 0 {
		return fmt.Errorf("catalog: no seasons")
	}
	if len(c.Weather) == 0 {
		return fmt.Errorf("catalog: no weather kinds")
	}
	for _, w := range c.Weather {
		for _, t := range w.Transitions {
			if _, ok := c.weather[t]; !ok {
				return fmt.Errorf("catalog: weather %q transitions to unknown kind %q", w.Key, t)
			}
		}
	}
	for _, cr := range c.Crops {
		if cr.GrowthDuration <= 0 {
			return fmt.Errorf("catalog: crop %q has no growth duration", cr.Key)
		}
	}
	for _, m := range c.Machines {
		for _, op := range m.Operations {
			if _, ok := c.operations[op]; !ok {
				return fmt.Errorf("catalog: machine %q uses unknown operation %q", m.Key, op)
			}
		}
		for _, u := range m.Upgrades {
			for _, op := range u.Operations {
				if _, ok := c.operations[op]; !ok {
					return fmt.Errorf("catalog: upgrade %s/%s adds unknown operation %q", m.Key, u.Key, op)
				}
			}
		}
	}
	for _, cl := range c.Clients {
		for _, p := range cl.Preferred {
			if _, ok := c.commodities[p]; !ok {
				return fmt.Errorf("catalog: client %q prefers unknown commodity %q", cl.Key, p)
			}
		}
	}
	return nil
}

// Season looks up a season by key.
func (c *Catalog) Season(key Season) (SeasonInfo, bool) {
	i, ok := c.seasons[key]
	if !ok {
		return SeasonInfo{}, false
	}
	return c.Seasons[i], true
}

// NextSeason returns the season that follows s in declaration order.
func (c *Catalog) NextSeason(s Season) Season {
	i, ok := c.seasons[s]
	if !ok {
		return c.Seasons[0].Key
	}
	return c.Seasons[(i+1)%len(c.Seasons)].Key
}

// WeatherKind looks up a weather kind by key.
func (c *Catalog) WeatherKind(key string) (WeatherKind, bool) {
	i, ok := c.weather[key]
	if !ok {
		return WeatherKind{}, false
	}
	return c.Weather[i], true
}

// Crop looks up a crop kind by key.
func (c *Catalog) Crop(key string) (CropKind, bool) {
	i, ok := c.crops[key]
	if !ok {
		return CropKind{}, false
	}
	return c.Crops[i], true
}

// Animal looks up an animal kind by key.
func (c *Catalog) Animal(key string) (AnimalKind, bool) {
	i, ok := c.animals[key]
	if !ok {
		return AnimalKind{}, false
	}
	return c.Animals[i], true
}

// Machine looks up a machine kind by key.
func (c *Catalog) Machine(key string) (MachineKind, bool) {
	i, ok := c.machines[key]
	if !ok {
		return MachineKind{}, false
	}
	return c.Machines[i], true
}

// Operation looks up a field operation by key.
func (c *Catalog) Operation(key string) (Operation, bool) {
	i, ok := c.operations[key]
	if !ok {
		return Operation{}, false
	}
	return c.Operations[i], true
}

// Commodity looks up a market commodity by key.
func (c *Catalog) Commodity(key string) (Commodity, bool) {
	i, ok := c.commodities[key]
	if !ok {
		return Commodity{}, false
	}
	return c.Commodities[i], true
}

// Client looks up a client profile by key.
func (c *Catalog) Client(key string) (Client, bool) {
	i, ok := c.clients[key]
	if !ok {
		return Client{}, false
	}
	return c.Clients[i], true
}

// Factory looks up a factory kind by key.
func (c *Catalog) Factory(key string) (FactoryKind, bool) {
	i, ok := c.factories[key]
	if !ok {
		return FactoryKind{}, false
	}
	return c.Factories[i], true
}

// ProductPrice finds the sale price of an animal product, searching every
// species. Returns false if no species yields key.
func (c *Catalog) ProductPrice(key string) (float64, bool) {
	for _, a := range c.Animals {
		if p, ok := a.Product(key); ok {
			return p.Price, true
		}
	}
	return 0, false
}
