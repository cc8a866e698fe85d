package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/talgya/mini-farm/internal/economy"
)

// Kind is the direction of a transaction.
type Kind string

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

// Transaction is one ledger line.
type Transaction struct {
	At          time.Duration `json:"at"`
	Amount      float64       `json:"amount"`
	Category    string        `json:"category"`
	Kind        Kind          `json:"kind"`
	Description string        `json:"description"`
}

// periodTotals accumulates the current month by category.
type periodTotals struct {
	Revenues map[string]float64 `json:"revenues"`
	Expenses map[string]float64 `json:"expenses"`
}

func newPeriodTotals() periodTotals {
	return periodTotals{Revenues: make(map[string]float64), Expenses: make(map[string]float64)}
}

// RecordTransaction appends a ledger line and updates the running totals.
// Non-positive amounts are ignored.
func (f *Finance) RecordTransaction(amount float64, category string, kind Kind, description string) {
	if amount <= 0 {
		return
	}
	amount = economy.Round(amount, 2)
	f.ledger = append(f.ledger, Transaction{
		At:          f.clk.Now(),
		Amount:      amount,
		Category:    category,
		Kind:        kind,
		Description: description,
	})
	if over := len(f.ledger) - f.cfg.LedgerLimit; over > 0 && f.cfg.LedgerLimit > 0 {
		f.ledger = append(f.ledger[:0:0], f.ledger[over:]...)
	}

	switch kind {
	case Income:
		f.revenues[category] = economy.Sum(f.revenues[category], amount)
		f.period.Revenues[category] = economy.Sum(f.period.Revenues[category], amount)
	case Expense:
		f.expenses[category] = economy.Sum(f.expenses[category], amount)
		f.period.Expenses[category] = economy.Sum(f.period.Expenses[category], amount)
	}
}

func (f *Finance) RecordExpense(amount float64, category, description string) {
	f.RecordTransaction(amount, category, Expense, description)
}

func (f *Finance) RecordRevenue(amount float64, category, description string) {
	f.RecordTransaction(amount, category, Income, description)
}

// Transactions returns the ledger, oldest first.
func (f *Finance) Transactions() []Transaction {
	return append([]Transaction(nil), f.ledger...)
}

// Revenues returns all-time revenue by category.
func (f *Finance) Revenues() map[string]float64 { return copyTotals(f.revenues) }

// Expenses returns all-time expenses by category.
func (f *Finance) Expenses() map[string]float64 { return copyTotals(f.expenses) }

func (f *Finance) totals() (revenue, expense float64) {
	return total(f.revenues).InexactFloat64(), total(f.expenses).InexactFloat64()
}

// window sums income and expense over the trailing window.
func (f *Finance) window(now time.Duration) (revenue, expense float64) {
	since := now - f.days(f.cfg.WindowDays)
	rev, exp := decimal.Zero, decimal.Zero
	for _, t := range f.ledger {
		if t.At <= since {
			continue
		}
		switch t.Kind {
		case Income:
			rev = rev.Add(decimal.NewFromFloat(t.Amount))
		case Expense:
			exp = exp.Add(decimal.NewFromFloat(t.Amount))
		}
	}
	return rev.InexactFloat64(), exp.InexactFloat64()
}

func total(m map[string]float64) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range m {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.Round(2)
}

func copyTotals(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
