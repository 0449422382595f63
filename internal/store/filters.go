package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/clublibertad/billing-service/internal/domain"
)

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

// add appends a condition; each "?" in cond is replaced by the next placeholder.
func (w *whereBuilder) add(cond string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func feeFilterClause(filter domain.FeeFilter) (string, []any) {
	var w whereBuilder
	if filter.MemberID != "" {
		w.add("f.member_id = ?", filter.MemberID)
	}
	if filter.SportID != "" {
		w.add("f.sport_id = ?", filter.SportID)
	}
	if !filter.Period.IsZero() {
		w.add("f.period = ?", filter.Period.String())
	}
	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, s := range filter.States {
			states[i] = string(s)
		}
		w.add("f.state = ANY(?)", states)
	}
	if !filter.DueBefore.IsZero() {
		w.add("f.due_date < ?::DATE", filter.DueBefore.Format(time.DateOnly))
	}
	return w.clause(), w.args
}

func paymentFilterClause(filter domain.PaymentFilter) (string, []any) {
	var w whereBuilder
	if filter.MemberID != "" {
		w.add("p.member_id = ?", filter.MemberID)
	}
	if !filter.From.IsZero() {
		w.add("p.payment_date >= ?::DATE", filter.From.Format(time.DateOnly))
	}
	if !filter.To.IsZero() {
		w.add("p.payment_date <= ?::DATE", filter.To.Format(time.DateOnly))
	}
	return w.clause(), w.args
}
