package processing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-farm/internal/catalog"
	"github.com/talgya/mini-farm/internal/clock"
	"github.com/talgya/mini-farm/internal/economy"
)

type harness struct {
	plant     *Plant
	clk       *clock.Sim
	wallet    *economy.Purse
	crops     *economy.Stock
	livestock *economy.Stock
}

func newHarness(cash float64) harness {
	clk := clock.NewSim(0)
	wallet := economy.NewPurse(cash)
	crops, livestock := economy.NewStock(), economy.NewStock()
	p := New(Deps{
		Catalog: catalog.Default(),
		Clock:   clk,
		Wallet:  wallet,
		Sources: []economy.Inventory{crops, livestock},
	})
	return harness{plant: p, clk: clk, wallet: wallet, crops: crops, livestock: livestock}
}

func (h harness) advance(d time.Duration) {
	h.clk.Advance(d)
	h.plant.Tick(d)
}

func TestBuild(t *testing.T) {
	h := newHarness(30000)

	_, err := h.plant.Build("brewery")
	require.ErrorIs(t, err, economy.ErrUnknownKind)

	id, err := h.plant.Build("mill")
	require.NoError(t, err)
	assert.Equal(t, FactoryID(1), id)
	assert.Equal(t, 5000.0, h.wallet.Balance())

	_, err = h.plant.Build("mill")
	require.ErrorIs(t, err, economy.ErrInsufficientFunds)
	assert.Len(t, h.plant.Factories(), 1)
}

func TestBatchLifecycle(t *testing.T) {
	h := newHarness(100000)
	id, _ := h.plant.Build("mill")
	h.crops.Credit("wheat", 60)

	require.NoError(t, h.plant.Start(id, "wheat", 50))
	assert.Equal(t, 10.0, h.crops.Get("wheat"))
	f, _ := h.plant.Factory(id)
	require.True(t, f.Busy())
	assert.Equal(t, 40.0, f.Batch.OutputQty)

	require.ErrorIs(t, h.plant.Start(id, "wheat", 5), economy.ErrAlreadyActive)

	h.advance(time.Second)
	assert.Equal(t, 0.0, h.plant.Inventory().Get("flour"))

	h.advance(time.Second)
	assert.Equal(t, 40.0, h.plant.Inventory().Get("flour"))
	f, _ = h.plant.Factory(id)
	assert.False(t, f.Busy())
	assert.Equal(t, 40.0, f.Produced)
}

func TestStartDrainsSourcesInOrder(t *testing.T) {
	h := newHarness(100000)
	id, _ := h.plant.Build("meat_plant")
	h.crops.Credit("pig_meat", 30)
	h.livestock.Credit("pig_meat", 100)

	require.NoError(t, h.plant.Start(id, "pig_meat", 50))
	assert.Equal(t, 0.0, h.crops.Get("pig_meat"))
	assert.Equal(t, 80.0, h.livestock.Get("pig_meat"))
}

func TestStartFailuresConsumeNothing(t *testing.T) {
	h := newHarness(100000)
	id, _ := h.plant.Build("oil_press")
	h.crops.Credit("soybean", 20)

	require.ErrorIs(t, h.plant.Start(99, "soybean", 10), economy.ErrNotFound)
	require.ErrorIs(t, h.plant.Start(id, "wheat", 10), economy.ErrUnsupportedOperation)
	require.ErrorIs(t, h.plant.Start(id, "soybean", 60), economy.ErrUnsupportedOperation)
	require.ErrorIs(t, h.plant.Start(id, "soybean", 0), economy.ErrUnsupportedOperation)
	require.ErrorIs(t, h.plant.Start(id, "soybean", 25), economy.ErrInsufficientInventory)

	assert.Equal(t, 20.0, h.crops.Get("soybean"))
	f, _ := h.plant.Factory(id)
	assert.False(t, f.Busy())
}

func TestStateRoundTrip(t *testing.T) {
	h := newHarness(100000)
	id, _ := h.plant.Build("dairy")
	h.livestock.Credit("cow_milk", 200)
	require.NoError(t, h.plant.Start(id, "cow_milk", 200))
	h.advance(500 * time.Millisecond)

	other := newHarness(0)
	other.clk.Set(h.clk.Now())
	other.plant.Restore(h.plant.State())
	assert.Equal(t, h.plant.Factories(), other.plant.Factories())

	other.advance(time.Second)
	assert.Equal(t, 190.0, other.plant.Inventory().Get("processed_milk"))

	next, err := other.plant.Build("mill")
	require.ErrorIs(t, err, economy.ErrInsufficientFunds)
	assert.Zero(t, next)
}
