package finance

import (
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/talgya/mini-farm/internal/economy"
)

// Report is a closed accounting month.
type Report struct {
	At            time.Duration      `json:"at"`
	Revenues      map[string]float64 `json:"revenues"`
	Expenses      map[string]float64 `json:"expenses"`
	TotalRevenue  float64            `json:"total_revenue"`
	TotalExpenses float64            `json:"total_expenses"`
	NetProfit     float64            `json:"net_profit"`
	CashFlow      float64            `json:"cash_flow"`
	ProfitMargin  float64            `json:"profit_margin"` // percent of revenue
	ROI           float64            `json:"roi"`
	ActiveLoans   int                `json:"active_loans"`
	Debt          float64            `json:"debt"`
	Cash          float64            `json:"cash"`
}

func (f *Finance) closeMonth(now time.Duration) {
	rev := total(f.period.Revenues)
	exp := total(f.period.Expenses)
	net := rev.Sub(exp)
	cash := f.wallet.Balance()

	margin := decimal.Zero
	if rev.IsPositive() {
		margin = net.Div(rev).Mul(decimal.NewFromInt(100)).Round(2)
	}

	r := Report{
		At:            now,
		Revenues:      copyTotals(f.period.Revenues),
		Expenses:      copyTotals(f.period.Expenses),
		TotalRevenue:  rev.InexactFloat64(),
		TotalExpenses: exp.InexactFloat64(),
		NetProfit:     net.InexactFloat64(),
		CashFlow:      economy.Round(cash-f.reportCash, 2),
		ProfitMargin:  margin.InexactFloat64(),
		ROI:           f.roi(),
		Cash:          cash,
	}
	for _, l := range f.loans {
		if l.Status == LoanActive {
			r.ActiveLoans++
			r.Debt += l.Balance
		}
	}
	r.Debt = economy.Round(r.Debt, 2)

	f.reports = append(f.reports, r)
	if over := len(f.reports) - f.cfg.ReportLimit; over > 0 && f.cfg.ReportLimit > 0 {
		f.reports = append(f.reports[:0:0], f.reports[over:]...)
	}
	f.period = newPeriodTotals()
	f.reportCash = cash

	f.events.Emit("finance", "monthly report: net "+money(r.NetProfit)+", cash "+money(cash))
	slog.Info("month closed",
		"revenue", money(r.TotalRevenue),
		"expenses", money(r.TotalExpenses),
		"net", money(r.NetProfit),
		"margin", r.ProfitMargin,
		"top_expense", topCategory(r.Expenses),
	)
}

// Reports returns the retained monthly reports, oldest first.
func (f *Finance) Reports() []Report {
	return append([]Report(nil), f.reports...)
}

// roi is all-time return on invested capital in percent. Investment is
// what went into construction, seeds and other capital outlays.
func (f *Finance) roi() float64 {
	investment := decimal.NewFromFloat(f.expenses[economy.CategoryConstruction]).
		Add(decimal.NewFromFloat(f.expenses[economy.CategorySeeds])).
		Add(decimal.NewFromFloat(f.expenses[economy.CategoryOther]))
	if !investment.IsPositive() {
		return 0
	}
	revenue := total(f.revenues)
	return revenue.Sub(investment).Div(investment).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

func topCategory(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := ""
	for _, k := range keys {
		if best == "" || m[k] > m[best] {
			best = k
		}
	}
	return best
}

// State is the persisted form of the books.
type State struct {
	Ledger        []Transaction      `json:"ledger"`
	Revenues      map[string]float64 `json:"revenues"`
	Expenses      map[string]float64 `json:"expenses"`
	Period        periodTotals       `json:"period"`
	Loans         []Loan             `json:"loans"`
	NextLoanID    LoanID             `json:"next_loan_id"`
	Reports       []Report           `json:"reports"`
	LastReport    time.Duration      `json:"last_report"`
	LastFixedCost time.Duration      `json:"last_fixed_cost"`
	ReportCash    float64            `json:"report_cash"`
}

// State captures the books for saving.
func (f *Finance) State() State {
	return State{
		Ledger:   f.Transactions(),
		Revenues: f.Revenues(),
		Expenses: f.Expenses(),
		Period: periodTotals{
			Revenues: copyTotals(f.period.Revenues),
			Expenses: copyTotals(f.period.Expenses),
		},
		Loans:         f.Loans(),
		NextLoanID:    f.nextLoanID,
		Reports:       f.Reports(),
		LastReport:    f.lastReport,
		LastFixedCost: f.lastFixedCost,
		ReportCash:    f.reportCash,
	}
}

// Restore replaces the books with saved ones.
func (f *Finance) Restore(s State) {
	f.ledger = append([]Transaction(nil), s.Ledger...)
	f.revenues = copyTotals(s.Revenues)
	f.expenses = copyTotals(s.Expenses)
	f.period = periodTotals{
		Revenues: copyTotals(s.Period.Revenues),
		Expenses: copyTotals(s.Period.Expenses),
	}
	f.loans = make(map[LoanID]*Loan, len(s.Loans))
	for i := range s.Loans {
		l := s.Loans[i]
		f.loans[l.ID] = &l
	}
	f.nextLoanID = s.NextLoanID
	if f.nextLoanID == 0 {
		f.nextLoanID = 1
	}
	f.reports = append([]Report(nil), s.Reports...)
	f.lastReport = s.LastReport
	f.lastFixedCost = s.LastFixedCost
	f.reportCash = s.ReportCash
}
