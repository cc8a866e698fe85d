// Package config holds the tunable coefficients of the farm simulation.
package config

import "time"

// Balance holds gameplay balance configuration.
type Balance struct {
	StartingCash float64 `yaml:"starting_cash"`

	Weather   Weather   `yaml:"weather"`
	Crops     Crops     `yaml:"crops"`
	Livestock Livestock `yaml:"livestock"`
	Machinery Machinery `yaml:"machinery"`
	Market    Market    `yaml:"market"`
	Finance   Finance   `yaml:"finance"`
}

// Weather tunes the weather state machine and its hazards.
type Weather struct {
	Duration       time.Duration `yaml:"duration"`
	DurationJitter float64       `yaml:"duration_jitter"` // ±fraction/2 of Duration
	SeasonLength   time.Duration `yaml:"season_length"`
	TransitionBias float64       `yaml:"transition_bias"` // chance to follow the transition table
	HistoryLimit   int           `yaml:"history_limit"`
	Wind           [2]float64    `yaml:"wind"`

	StormDamageChance     float64       `yaml:"storm_damage_chance"`
	DroughtIrrigationCost float64       `yaml:"drought_irrigation_cost"`
	FrostDamage           float64       `yaml:"frost_damage"`
	SnowSlowdown          float64       `yaml:"snow_slowdown"`
	SnowSlowdownFor       time.Duration `yaml:"snow_slowdown_for"`
}

// Crops tunes the crop subsystem.
type Crops struct {
	MaxCondition float64 `yaml:"max_condition"` // cap on field-work bonuses
}

// Livestock tunes animal health, production and breeding.
type Livestock struct {
	DayLength          time.Duration `yaml:"day_length"`
	FreshDays          float64       `yaml:"fresh_days"`
	HealthRegenPerDay  float64       `yaml:"health_regen_per_day"`
	FeedHealthGain     float64       `yaml:"feed_health_gain"`
	FeedAllHealthGain  float64       `yaml:"feed_all_health_gain"`
	ProductionInterval time.Duration `yaml:"production_interval"`
	ProductionHealth   float64       `yaml:"production_health"` // minimum health to produce
	BreedingHealth     float64       `yaml:"breeding_health"`
}

// Machinery tunes wear, maintenance and weather damage.
type Machinery struct {
	Day                  time.Duration `yaml:"day"`
	BreakdownThreshold   float64       `yaml:"breakdown_threshold"`
	HoursPerUse          float64       `yaml:"hours_per_use"`
	BaseWear             float64       `yaml:"base_wear"` // durability per operating hour
	AgeWearFactor        float64       `yaml:"age_wear_factor"`
	StaleFactor          float64       `yaml:"stale_factor"`
	StaleAfterDays       float64       `yaml:"stale_after_days"`
	MaintenanceEvery     float64       `yaml:"maintenance_every_days"`
	MaintenanceRestore   float64       `yaml:"maintenance_restore"`
	MaintenancePenalty   float64       `yaml:"maintenance_penalty"`
	DailyWear            float64       `yaml:"daily_wear"`
	WeatherFloor         float64       `yaml:"weather_floor"`
	WeatherCeiling       float64       `yaml:"weather_ceiling"`
	WeatherDamage        [2]float64    `yaml:"weather_damage"`
	MaxWeatherResistance float64       `yaml:"max_weather_resistance"`
}

// Market tunes pricing and contracts.
type Market struct {
	Day             time.Duration `yaml:"day"`
	PriceInterval   time.Duration `yaml:"price_interval"`
	HistoryLength   int           `yaml:"history_length"`
	InitialLevel    [2]float64    `yaml:"initial_level"` // demand and supply start band
	Band            [2]float64    `yaml:"band"`          // demand and supply clamp
	DemandStep      float64       `yaml:"demand_step"`
	SupplyDecay     float64       `yaml:"supply_decay"`
	SupplyPerSale   float64       `yaml:"supply_per_sale"`
	PressureScale   float64       `yaml:"pressure_scale"`
	DampeningScale  float64       `yaml:"dampening_scale"`
	DampeningFloor  float64       `yaml:"dampening_floor"`
	MultiplierRange [2]float64    `yaml:"multiplier_range"`
	PriceFloor      float64       `yaml:"price_floor"`   // × base
	PriceCeiling    float64       `yaml:"price_ceiling"` // × base

	ContractInterval time.Duration `yaml:"contract_interval"`
	ContractChance   float64       `yaml:"contract_chance"`
	MaxOpenContracts int           `yaml:"max_open_contracts"`
	InitialContracts [2]int        `yaml:"initial_contracts"`
	ContractQuantity [2]float64    `yaml:"contract_quantity"`
	ContractDeadline [2]float64    `yaml:"contract_deadline_days"`
	LateDiscount     float64       `yaml:"late_discount"` // fraction paid on late settlement
}

// Finance tunes the ledger, loans and reporting.
type Finance struct {
	Day              time.Duration `yaml:"day"`
	LedgerLimit      int           `yaml:"ledger_limit"`
	ReportLimit      int           `yaml:"report_limit"`
	ReportEveryDays  float64       `yaml:"report_every_days"`
	WindowDays       float64       `yaml:"window_days"`
	LoanTerm         int           `yaml:"loan_term"`
	PaymentEveryDays float64       `yaml:"payment_every_days"`
	RetryAfterDays   float64       `yaml:"retry_after_days"`
	LatePenalty      float64       `yaml:"late_penalty"`
	MinCreditScore   float64       `yaml:"min_credit_score"`
	MaxDebtRatio     float64       `yaml:"max_debt_ratio"`
	BaseRate         float64       `yaml:"base_rate"`
	RiskSpread       float64       `yaml:"risk_spread"`
	AmountSpread     float64       `yaml:"amount_spread"`
	AmountScale      float64       `yaml:"amount_scale"`
	MaxRate          float64       `yaml:"max_rate"`
	ProfitScale      float64       `yaml:"profit_scale"`
	LiquidityScale   float64       `yaml:"liquidity_scale"`
	HistoryScale     float64       `yaml:"history_scale"`
	FixedCost        float64       `yaml:"fixed_cost"`
	FixedCostEvery   float64       `yaml:"fixed_cost_every_days"`
}

// Default returns the default balance configuration.
func Default() Balance {
	return Balance{
		StartingCash: 50000,
		Weather: Weather{
			Duration:              5 * time.Minute,
			DurationJitter:        0.5,
			SeasonLength:          20 * time.Minute,
			TransitionBias:        0.7,
			HistoryLimit:          50,
			Wind:                  [2]float64{5, 25},
			StormDamageChance:     0.1,
			DroughtIrrigationCost: 500,
			FrostDamage:           0.3,
			SnowSlowdown:          0.5,
			SnowSlowdownFor:       time.Hour,
		},
		Crops: Crops{
			MaxCondition: 1.5,
		},
		Livestock: Livestock{
			DayLength:          time.Second,
			FreshDays:          1,
			HealthRegenPerDay:  1,
			FeedHealthGain:     10,
			FeedAllHealthGain:  15,
			ProductionInterval: 5 * time.Second,
			ProductionHealth:   50,
			BreedingHealth:     70,
		},
		Machinery: Machinery{
			Day:                  24 * time.Hour,
			BreakdownThreshold:   20,
			HoursPerUse:          1,
			BaseWear:             1,
			AgeWearFactor:        0.1,
			StaleFactor:          1.5,
			StaleAfterDays:       30,
			MaintenanceEvery:     30,
			MaintenanceRestore:   5,
			MaintenancePenalty:   10,
			DailyWear:            0.1,
			WeatherFloor:         0.2,
			WeatherCeiling:       1.2,
			WeatherDamage:        [2]float64{10, 30},
			MaxWeatherResistance: 1.0,
		},
		Market: Market{
			Day:              24 * time.Hour,
			PriceInterval:    30 * time.Second,
			HistoryLength:    100,
			InitialLevel:     [2]float64{50, 150},
			Band:             [2]float64{20, 200},
			DemandStep:       10,
			SupplyDecay:      0.99,
			SupplyPerSale:    0.1,
			PressureScale:    1000,
			DampeningScale:   1000,
			DampeningFloor:   0.8,
			MultiplierRange:  [2]float64{0.5, 2.0},
			PriceFloor:       0.5,
			PriceCeiling:     2.0,
			ContractInterval: time.Minute,
			ContractChance:   0.5,
			MaxOpenContracts: 8,
			InitialContracts: [2]int{2, 4},
			ContractQuantity: [2]float64{100, 600},
			ContractDeadline: [2]float64{7, 21},
			LateDiscount:     0.9,
		},
		Finance: Finance{
			Day:              24 * time.Hour,
			LedgerLimit:      1000,
			ReportLimit:      12,
			ReportEveryDays:  30,
			WindowDays:       30,
			LoanTerm:         12,
			PaymentEveryDays: 30,
			RetryAfterDays:   1,
			LatePenalty:      0.01,
			MinCreditScore:   0.5,
			MaxDebtRatio:     0.4,
			BaseRate:         0.05,
			RiskSpread:       0.10,
			AmountSpread:     0.03,
			AmountScale:      100000,
			MaxRate:          0.25,
			ProfitScale:      100000,
			LiquidityScale:   50000,
			HistoryScale:     100,
			FixedCost:        50,
			FixedCostEvery:   1,
		},
	}
}

// Casual returns easier balance for casual difficulty.
func Casual() Balance {
	cfg := Default()
	cfg.StartingCash = 100000
	cfg.Weather.StormDamageChance = 0.05
	cfg.Weather.FrostDamage = 0.15
	cfg.Livestock.FreshDays = 2
	cfg.Machinery.BaseWear = 0.5
	cfg.Finance.MinCreditScore = 0.4
	return cfg
}

// Hard returns harder balance for experienced players.
func Hard() Balance {
	cfg := Default()
	cfg.StartingCash = 25000
	cfg.Weather.StormDamageChance = 0.2
	cfg.Weather.FrostDamage = 0.5
	cfg.Machinery.BaseWear = 1.5
	cfg.Market.LateDiscount = 0.8
	cfg.Finance.MinCreditScore = 0.6
	cfg.Finance.FixedCost = 100
	return cfg
}
