// Package finance keeps the farm's books: the transaction ledger, bank
// loans with automatic repayment, fixed operating costs and monthly
// reports.
package finance

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-farm/internal/clock"
	"github.com/talgya/mini-farm/internal/config"
	"github.com/talgya/mini-farm/internal/economy"
)

// Deps are the collaborators of Finance.
type Deps struct {
	Balance config.Finance
	Clock   clock.Clock
	Wallet  economy.Wallet
	Events  economy.EventSink
}

// Finance is the farm's bookkeeper and lender. It implements
// economy.Recorder so every subsystem can report its money movements.
type Finance struct {
	cfg    config.Finance
	clk    clock.Clock
	wallet economy.Wallet
	events economy.EventSink

	ledger   []Transaction
	revenues map[string]float64 // all-time totals by category
	expenses map[string]float64

	period periodTotals

	loans      map[LoanID]*Loan
	nextLoanID LoanID

	reports       []Report
	lastReport    time.Duration
	lastFixedCost time.Duration
	reportCash    float64 // cash at the previous report
}

// New creates empty books. The opening cash is the reference for the first
// report's cash flow.
func New(d Deps) *Finance {
	now := d.Clock.Now()
	return &Finance{
		cfg:           d.Balance,
		clk:           d.Clock,
		wallet:        d.Wallet,
		events:        economy.SinkOrNop(d.Events),
		revenues:      make(map[string]float64),
		expenses:      make(map[string]float64),
		period:        newPeriodTotals(),
		loans:         make(map[LoanID]*Loan),
		nextLoanID:    1,
		lastReport:    now,
		lastFixedCost: now,
		reportCash:    d.Wallet.Balance(),
	}
}

func (f *Finance) days(n float64) time.Duration {
	return time.Duration(n * float64(f.cfg.Day))
}

// Tick collects due loan payments, charges fixed operating costs and closes
// one month for every report period that has elapsed.
func (f *Finance) Tick(elapsed time.Duration) {
	now := f.clk.Now()
	f.collectPayments(now)
	f.chargeFixedCosts(now)
	period := f.days(f.cfg.ReportEveryDays)
	for period > 0 && now-f.lastReport >= period {
		f.lastReport += period
		f.closeMonth(f.lastReport)
	}
}

func (f *Finance) chargeFixedCosts(now time.Duration) {
	period := f.days(f.cfg.FixedCostEvery)
	if f.cfg.FixedCost <= 0 || period <= 0 {
		f.lastFixedCost = now
		return
	}
	n := math.Floor(float64(now-f.lastFixedCost) / float64(period))
	if n < 1 {
		return
	}
	f.lastFixedCost += time.Duration(n) * period

	cost := economy.Round(f.cfg.FixedCost*n, 2)
	if !f.wallet.TrySpend(cost) {
		f.events.Emit("finance", fmt.Sprintf("could not pay %s of operating costs", money(cost)))
		slog.Warn("operating costs unpaid", "amount", cost, "cash", f.wallet.Balance())
		return
	}
	f.RecordExpense(cost, economy.CategoryUtilities, "daily operating costs")
}

// Summary is a snapshot of the farm's finances.
type Summary struct {
	Cash           float64 `json:"cash"`
	TotalRevenue   float64 `json:"total_revenue"`
	TotalExpenses  float64 `json:"total_expenses"`
	NetProfit      float64 `json:"net_profit"`
	MonthlyRevenue float64 `json:"monthly_revenue"`
	MonthlyExpense float64 `json:"monthly_expense"`
	Debt           float64 `json:"debt"`
	ActiveLoans    int     `json:"active_loans"`
	CreditScore    float64 `json:"credit_score"`
	ROI            float64 `json:"roi"`
}

func (f *Finance) Summary() Summary {
	rev, exp := f.totals()
	rev30, exp30 := f.window(f.clk.Now())
	s := Summary{
		Cash:           f.wallet.Balance(),
		TotalRevenue:   rev,
		TotalExpenses:  exp,
		NetProfit:      economy.Round(rev-exp, 2),
		MonthlyRevenue: rev30,
		MonthlyExpense: exp30,
		CreditScore:    f.CreditScore(),
		ROI:            f.roi(),
	}
	for _, l := range f.loans {
		if l.Status == LoanActive {
			s.ActiveLoans++
			s.Debt += l.Balance
		}
	}
	s.Debt = economy.Round(s.Debt, 2)
	return s
}

// money formats an amount for log and event lines.
func money(x float64) string {
	return humanize.FormatFloat("#,###.##", x)
}
