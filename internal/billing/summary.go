package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clublibertad/billing-service/internal/domain"
)

// Summary aggregates fee and payment totals for a billing screen.
type Summary struct {
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	TotalOverdue     decimal.Decimal `json:"total_overdue"`
	// IncomeToday sums the payments passed to Summarize, not the fees.
	IncomeToday      decimal.Decimal `json:"income_today"`
	PaidCount        int             `json:"paid_count"`
	OutstandingCount int             `json:"outstanding_count"`
	OverdueCount     int             `json:"overdue_count"`
	PaymentsToday    int             `json:"payments_today"`

	BySport map[string]map[domain.FeeState]decimal.Decimal `json:"by_sport,omitempty"`
}

// Summarize computes report totals. Fee totals sum fee amounts by state;
// income sums the totals of payments dated on today. Payment dates and today
// are civil dates (see domain.CivilDate), compared by their UTC calendar day.
func Summarize(fees []domain.Fee, payments []domain.Payment, today time.Time) Summary {
	s := Summary{
		TotalPaid:        decimal.Zero,
		TotalOutstanding: decimal.Zero,
		TotalOverdue:     decimal.Zero,
		IncomeToday:      decimal.Zero,
	}

	for _, f := range fees {
		switch f.State {
		case domain.FeeStatePaid:
			s.TotalPaid = s.TotalPaid.Add(f.Amount)
			s.PaidCount++
		case domain.FeeStateGenerated:
			s.TotalOutstanding = s.TotalOutstanding.Add(f.Amount)
			s.OutstandingCount++
		case domain.FeeStateOverdue:
			s.TotalOverdue = s.TotalOverdue.Add(f.Amount)
			s.OverdueCount++
		}
	}

	day := domain.CivilDate(today, time.UTC)
	for _, p := range payments {
		if domain.CivilDate(p.PaymentDate, time.UTC).Equal(day) {
			s.IncomeToday = s.IncomeToday.Add(p.TotalAmount)
			s.PaymentsToday++
		}
	}

	return s
}

// TotalsBySport sums fee amounts per sport id and state.
func TotalsBySport(fees []domain.Fee) map[string]map[domain.FeeState]decimal.Decimal {
	out := make(map[string]map[domain.FeeState]decimal.Decimal)
	for _, f := range fees {
		byState, ok := out[f.SportID]
		if !ok {
			byState = make(map[domain.FeeState]decimal.Decimal)
			out[f.SportID] = byState
		}
		byState[f.State] = byState[f.State].Add(f.Amount)
	}
	return out
}
