package catalog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoads(t *testing.T) {
	c := Default()

	require.Len(t, c.Seasons, 4)
	assert.Equal(t, Spring, c.Seasons[0].Key)
	assert.Equal(t, Summer, c.NextSeason(Spring))
	assert.Equal(t, Spring, c.NextSeason(Winter))

	wheat, ok := c.Crop("wheat")
	require.True(t, ok)
	assert.Equal(t, 100.0, wheat.Cost)
	assert.Equal(t, 5*time.Second, wheat.GrowthDuration)
	assert.Equal(t, 3.0, wheat.BaseYield)

	cow, ok := c.Animal("cow")
	require.True(t, ok)
	milk, ok := cow.Product("cow_milk")
	require.True(t, ok)
	assert.True(t, milk.RequiresMaturity)

	tractor, ok := c.Machine("tractor")
	require.True(t, ok)
	assert.True(t, tractor.Supports("plowing"))
	assert.False(t, tractor.Supports("watering"))

	mill, ok := c.Factory("mill")
	require.True(t, ok)
	assert.True(t, mill.Accepts("corn"))
	assert.Equal(t, 2*time.Second, mill.ProcessingTime)

	_, ok = c.Crop("potato")
	assert.False(t, ok)
}

func TestDefaultWeatherIsConsistent(t *testing.T) {
	c := Default()
	for _, s := range c.Seasons {
		total := 0.0
		for _, w := range c.Weather {
			total += w.Probability[s.Key]
		}
		assert.Greater(t, total, 0.0, "season %s has no weather", s.Key)
	}

	snow, ok := c.WeatherKind("snow")
	require.True(t, ok)
	assert.True(t, snow.Damaging)
	assert.False(t, snow.ValidIn(Summer))
}

func TestEveryCommodityIsProduced(t *testing.T) {
	c := Default()
	produced := map[string]bool{}
	for _, cr := range c.Crops {
		produced[cr.Key] = true
	}
	for _, a := range c.Animals {
		for _, p := range a.Products {
			produced[p.Key] = true
		}
	}
	for _, f := range c.Factories {
		produced[f.Output] = true
	}
	for _, com := range c.Commodities {
		assert.True(t, produced[com.Key], "nobody produces %s", com.Key)
	}
}

func TestCommodityFactors(t *testing.T) {
	c := Default()
	wheat, _ := c.Commodity("wheat")
	assert.Equal(t, 1.2, wheat.SeasonalFactor(Winter))
	assert.Equal(t, 1.3, wheat.WeatherFactor("drought"))
	assert.Equal(t, 1.0, wheat.WeatherFactor("sunny"))

	milk, _ := c.Commodity("cow_milk")
	assert.Equal(t, 1.0, milk.SeasonalFactor(Winter))

	price, ok := c.ProductPrice("eggs")
	require.True(t, ok)
	assert.Equal(t, 0.3, price)
}

func TestLoadRejectsBadTables(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown transition",
			yaml: `
seasons: [{key: spring}]
weather:
  - {key: sunny, probability: {spring: 1}, transitions: [fog]}
`,
			want: "unknown kind",
		},
		{
			name: "duplicate crop",
			yaml: `
seasons: [{key: spring}]
weather: [{key: sunny}]
crops:
  - {key: wheat, growth_duration: 1s}
  - {key: wheat, growth_duration: 1s}
`,
			want: "duplicate crop",
		},
		{
			name: "unknown field",
			yaml: `
seasons: [{key: spring, colour: green}]
`,
			want: "decode catalog",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
