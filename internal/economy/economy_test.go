package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPurseTrySpendIsAtomic(t *testing.T) {
	p := NewPurse(100)

	assert.True(t, p.TrySpend(40))
	assert.Equal(t, 60.0, p.Balance())

	assert.False(t, p.TrySpend(60.01))
	assert.Equal(t, 60.0, p.Balance(), "failed spend must not debit")

	assert.True(t, p.TrySpend(60))
	assert.Equal(t, 0.0, p.Balance())

	assert.True(t, p.TrySpend(0))
	p.Credit(-5)
	assert.Equal(t, 0.0, p.Balance())

	p.Credit(12.345)
	assert.Equal(t, 12.35, p.Balance())
}

func TestStockConsumeReturnsActual(t *testing.T) {
	s := NewStock()
	s.Credit("wheat", 3)
	s.Credit("wheat", 1.5)
	s.Credit("corn", 0)

	assert.Equal(t, 4.5, s.Get("wheat"))
	assert.Equal(t, []string{"wheat"}, s.Keys())

	assert.Equal(t, 2.0, s.Consume("wheat", 2))
	assert.Equal(t, 2.5, s.Consume("wheat", 10))
	assert.Equal(t, 0.0, s.Get("wheat"))
	assert.Empty(t, s.Keys())
}

func TestConsumeInOrder(t *testing.T) {
	first, second := NewStock(), NewStock()
	first.Credit("cow_meat", 5)
	second.Credit("cow_meat", 10)

	assert.Equal(t, 15.0, Available("cow_meat", first, second))
	assert.Equal(t, 8.0, ConsumeInOrder("cow_meat", 8, first, second))
	assert.Equal(t, 0.0, first.Get("cow_meat"))
	assert.Equal(t, 7.0, second.Get("cow_meat"))
}

func TestStockSnapshotRestore(t *testing.T) {
	s := NewStock()
	s.Credit("eggs", 4)
	snap := s.Snapshot()
	s.Consume("eggs", 4)

	restored := NewStock()
	restored.Restore(snap)
	assert.Equal(t, 4.0, restored.Get("eggs"))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 3.6, Round(3.55, 1))
	assert.Equal(t, 0.3, Round(0.1+0.2, 2))
	assert.Equal(t, 1.0, Clamp(3, 0, 1))
	assert.Equal(t, 0.3, Sum(0.1, 0.2))
}
