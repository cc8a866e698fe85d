package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetsDifferFromDefault(t *testing.T) {
	def := Default()
	assert.Greater(t, Casual().StartingCash, def.StartingCash)
	assert.Less(t, Hard().StartingCash, def.StartingCash)
	assert.Equal(t, 20.0, def.Machinery.BreakdownThreshold)
	assert.Equal(t, 12, def.Finance.LoanTerm)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DIFFICULTY", "hard")
	t.Setenv("FARM_STARTING_CASH", "75000")
	t.Setenv("FARM_LIVESTOCK_DAY", "2s")
	t.Setenv("FARM_PRICE_INTERVAL", "not-a-duration")

	cfg := FromEnv()
	assert.Equal(t, 75000.0, cfg.StartingCash)
	assert.Equal(t, 2*time.Second, cfg.Livestock.DayLength)
	assert.Equal(t, Default().Market.PriceInterval, cfg.Market.PriceInterval)
	assert.Equal(t, Hard().Finance.FixedCost, cfg.Finance.FixedCost)
}

func TestFromEnvZeroFixedCost(t *testing.T) {
	t.Setenv("FARM_FIXED_COST", "0")
	assert.Equal(t, 0.0, FromEnv().Finance.FixedCost)
}

func TestLoadOverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "balance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
starting_cash: 1234
weather:
  duration: 90s
finance:
  loan_term: 24
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1234.0, cfg.StartingCash)
	assert.Equal(t, 90*time.Second, cfg.Weather.Duration)
	assert.Equal(t, 24, cfg.Finance.LoanTerm)
	assert.Equal(t, Default().Weather.SeasonLength, cfg.Weather.SeasonLength)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
