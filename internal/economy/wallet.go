package economy

import "sync"

// Wallet is the farm's single cash balance. Subsystems never do arithmetic
// on it directly: a spend either fully succeeds or fully fails.
type Wallet interface {
	TrySpend(amount float64) bool
	Credit(amount float64)
	Balance() float64
}

// Purse is the in-memory Wallet owned by the game controller.
type Purse struct {
	mu      sync.Mutex
	balance float64
}

// NewPurse returns a purse holding initial cash.
func NewPurse(initial float64) *Purse {
	return &Purse{balance: Round(initial, 2)}
}

// TrySpend debits amount if the balance covers it. Non-positive amounts
// always succeed without changing the balance.
func (p *Purse) TrySpend(amount float64) bool {
	if amount <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if amount > p.balance+1e-9 {
		return false
	}
	p.balance = Round(p.balance-amount, 2)
	return true
}

// Credit adds a positive amount to the balance.
func (p *Purse) Credit(amount float64) {
	if amount <= 0 {
		return
	}
	p.mu.Lock()
	p.balance = Round(p.balance+amount, 2)
	p.mu.Unlock()
}

func (p *Purse) Balance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

// Set replaces the balance. Used when restoring a saved game.
func (p *Purse) Set(balance float64) {
	p.mu.Lock()
	p.balance = Round(balance, 2)
	p.mu.Unlock()
}
