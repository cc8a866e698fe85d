package finance

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/talgya/mini-farm/internal/economy"
)

// LoanID is a unique loan identifier.
type LoanID uint64

// LoanStatus is the repayment state of a loan.
type LoanStatus string

const (
	LoanActive LoanStatus = "active"
	LoanPaid   LoanStatus = "paid"
)

// Loan is an amortized bank loan repaid monthly.
type Loan struct {
	ID            LoanID        `json:"id"`
	Principal     float64       `json:"principal"`
	Balance       float64       `json:"balance"`
	Rate          float64       `json:"rate"` // annual
	Payment       float64       `json:"payment"`
	Term          int           `json:"term"`
	PaymentsMade  int           `json:"payments_made"`
	TakenAt       time.Duration `json:"taken_at"`
	NextPaymentAt time.Duration `json:"next_payment_at"`
	Status        LoanStatus    `json:"status"`
}

// CreditScore rates the farm in [0, 1] from its profitability, liquidity
// and bookkeeping history.
func (f *Finance) CreditScore() float64 {
	rev, exp := f.totals()
	profit := economy.Clamp((rev-exp)/f.cfg.ProfitScale, 0, 1)
	liquidity := economy.Clamp(f.wallet.Balance()/f.cfg.LiquidityScale, 0, 1)
	history := economy.Clamp(float64(len(f.ledger))/f.cfg.HistoryScale, 0, 1)
	return (profit + liquidity + history) / 3
}

// MaxLoanAmount caps new borrowing at a share of a year of the trailing
// month's net income.
func (f *Finance) MaxLoanAmount() float64 {
	rev, exp := f.window(f.clk.Now())
	return economy.Round(math.Max(0, (rev-exp)*12*f.cfg.MaxDebtRatio), 2)
}

// InterestRate quotes the annual rate for borrowing amount.
func (f *Finance) InterestRate(amount float64) float64 {
	risk := (1 - f.CreditScore()) * f.cfg.RiskSpread
	size := math.Min(amount/f.cfg.AmountScale, f.cfg.AmountSpread)
	return math.Min(f.cfg.MaxRate, f.cfg.BaseRate+risk+size)
}

// MonthlyPayment is the annuity payment for principal at an annual rate
// over term months.
func MonthlyPayment(principal, rate float64, term int) float64 {
	if term <= 0 {
		return principal
	}
	r := rate / 12
	if r == 0 {
		return principal / float64(term)
	}
	growth := math.Pow(1+r, float64(term))
	return principal * r * growth / (growth - 1)
}

// RequestLoan borrows amount, crediting the wallet immediately.
func (f *Finance) RequestLoan(amount float64) (LoanID, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("request loan of %.2f: %w", amount, economy.ErrUnsupportedOperation)
	}
	if score := f.CreditScore(); score < f.cfg.MinCreditScore {
		return 0, fmt.Errorf("request loan (score %.2f): %w", score, economy.ErrInsufficientCreditScore)
	}
	if max := f.MaxLoanAmount(); amount > max {
		return 0, fmt.Errorf("request loan of %.2f (max %.2f): %w", amount, max, economy.ErrExceedsMaxLoan)
	}

	now := f.clk.Now()
	rate := f.InterestRate(amount)
	l := &Loan{
		ID:            f.nextLoanID,
		Principal:     amount,
		Balance:       amount,
		Rate:          rate,
		Payment:       economy.Round(MonthlyPayment(amount, rate, f.cfg.LoanTerm), 2),
		Term:          f.cfg.LoanTerm,
		TakenAt:       now,
		NextPaymentAt: now + f.days(f.cfg.PaymentEveryDays),
		Status:        LoanActive,
	}
	f.loans[l.ID] = l
	f.nextLoanID++

	f.wallet.Credit(amount)
	f.RecordRevenue(amount, economy.CategoryLoans, fmt.Sprintf("bank loan #%d", l.ID))
	f.events.Emit("finance", fmt.Sprintf("loan #%d of %s granted at %.1f%%", l.ID, money(amount), rate*100))
	slog.Info("loan granted", "id", l.ID, "amount", amount, "rate", rate, "payment", l.Payment)
	return l.ID, nil
}

// RepayLoan pays amount towards loan id. The month's interest is covered
// first; the rest reduces the balance.
func (f *Finance) RepayLoan(id LoanID, amount float64) error {
	l, ok := f.loans[id]
	if !ok || l.Status != LoanActive {
		return fmt.Errorf("repay loan %d: %w", id, economy.ErrNotFound)
	}
	if amount <= 0 {
		return fmt.Errorf("repay loan %d with %.2f: %w", id, amount, economy.ErrUnsupportedOperation)
	}
	amount = math.Min(amount, f.settlement(l))
	if !f.wallet.TrySpend(amount) {
		return fmt.Errorf("repay loan %d (%.2f): %w", id, amount, economy.ErrInsufficientFunds)
	}
	f.applyPayment(l, amount)
	return nil
}

// settlement is what clears the loan this month: balance plus interest.
func (f *Finance) settlement(l *Loan) float64 {
	return economy.Round(l.Balance+l.Balance*l.Rate/12, 2)
}

func (f *Finance) applyPayment(l *Loan, amount float64) {
	interest := math.Min(amount, economy.Round(l.Balance*l.Rate/12, 2))
	principal := math.Min(amount-interest, l.Balance)

	l.Balance = economy.Round(l.Balance-principal, 2)
	f.RecordExpense(interest, economy.CategoryInterest, fmt.Sprintf("interest on loan #%d", l.ID))
	f.RecordExpense(principal, economy.CategoryOther, fmt.Sprintf("principal on loan #%d", l.ID))

	if l.Balance <= 0 {
		l.Balance = 0
		l.Status = LoanPaid
		f.events.Emit("finance", fmt.Sprintf("loan #%d paid off", l.ID))
	}
}

// collectPayments auto-debits every installment that has fallen due by now,
// oldest first. A failed debit adds a late penalty to the balance and retries
// later.
func (f *Finance) collectPayments(now time.Duration) {
	every := f.days(f.cfg.PaymentEveryDays)
	retry := f.days(f.cfg.RetryAfterDays)
	for _, l := range f.sortedLoans() {
		for l.Status == LoanActive && now >= l.NextPaymentAt {
			due := math.Min(l.Payment, f.settlement(l))
			if f.wallet.TrySpend(due) {
				f.applyPayment(l, due)
				l.PaymentsMade++
				l.NextPaymentAt += every
				if every <= 0 {
					break
				}
				continue
			}
			l.Balance = economy.Round(l.Balance*(1+f.cfg.LatePenalty), 2)
			l.NextPaymentAt += retry
			f.events.Emit("finance", fmt.Sprintf("missed payment of %s on loan #%d", money(due), l.ID))
			slog.Warn("loan payment failed", "id", l.ID, "due", due, "cash", f.wallet.Balance(), "balance", l.Balance)
			if retry <= 0 {
				break
			}
		}
	}
}

func (f *Finance) sortedLoans() []*Loan {
	out := make([]*Loan, 0, len(f.loans))
	for _, l := range f.loans {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Loan returns a copy of the loan with id.
func (f *Finance) Loan(id LoanID) (Loan, bool) {
	l, ok := f.loans[id]
	if !ok {
		return Loan{}, false
	}
	return *l, true
}

// Loans returns every loan, paid ones included, ordered by id.
func (f *Finance) Loans() []Loan {
	out := make([]Loan, 0, len(f.loans))
	for _, l := range f.sortedLoans() {
		out = append(out, *l)
	}
	return out
}
