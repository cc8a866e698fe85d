package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FromEnv loads balance configuration from environment variables.
// Falls back to defaults if variables are not set.
func FromEnv() Balance {
	cfg := Default()

	// Support preset modes; individual variables still override them.
	switch os.Getenv("DIFFICULTY") {
	case "casual":
		cfg = Casual()
	case "hard":
		cfg = Hard()
	}

	if val := getEnvFloat("FARM_STARTING_CASH"); val > 0 {
		cfg.StartingCash = val
	}
	if val := getEnvDuration("FARM_WEATHER_DURATION"); val > 0 {
		cfg.Weather.Duration = val
	}
	if val := getEnvDuration("FARM_SEASON_LENGTH"); val > 0 {
		cfg.Weather.SeasonLength = val
	}
	if val := getEnvDuration("FARM_LIVESTOCK_DAY"); val > 0 {
		cfg.Livestock.DayLength = val
	}
	if val := getEnvDuration("FARM_PRICE_INTERVAL"); val > 0 {
		cfg.Market.PriceInterval = val
	}
	if val := getEnvFloat("FARM_BREAKDOWN_THRESHOLD"); val > 0 {
		cfg.Machinery.BreakdownThreshold = val
	}
	if val := getEnvFloat("FARM_MIN_CREDIT_SCORE"); val > 0 {
		cfg.Finance.MinCreditScore = val
	}
	if val := getEnvFloat("FARM_FIXED_COST"); val >= 0 && os.Getenv("FARM_FIXED_COST") != "" {
		cfg.Finance.FixedCost = val
	}

	return cfg
}

// Load reads a YAML balance file. Keys present in the file override the
// defaults; everything else keeps its default value.
func Load(path string) (Balance, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read balance: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse balance %s: %w", path, err)
	}
	return cfg, nil
}

func getEnvFloat(key string) float64 {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0
	}
	return num
}

func getEnvDuration(key string) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0
	}
	return d
}
