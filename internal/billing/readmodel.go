/**
 * @description
 * Read model for billing screens: fees joined with their member, sport and
 * promotion data, built from the four collections at read time.
 */
package billing

import (
	"sort"
	"strings"

	"github.com/clublibertad/billing-service/internal/domain"
)

// FeeView is a fee enriched with the data a billing screen displays next to it.
type FeeView struct {
	domain.Fee
	MemberName     string             `json:"member_name"`
	MemberDocument string             `json:"member_document"`
	MemberActive   bool               `json:"member_active"`
	SportName      string             `json:"sport_name"`
	Promotions     []domain.Promotion `json:"promotions"`
}

// FeeQuery filters fee views. Zero values mean "any".
type FeeQuery struct {
	MemberID string
	SportID  string
	Period   domain.Period
	States   []domain.FeeState
	Text     string
}

// BuildFeeViews joins fees with members, sports and promotions. Fees whose
// member or sport is missing are still returned with empty display fields.
// Member promotions are included whether active or not so historic
// discounts stay visible.
func BuildFeeViews(fees []domain.Fee, members []domain.Member, sports []domain.Sport, promotions []domain.Promotion) []FeeView {
	membersByID := make(map[string]domain.Member, len(members))
	for _, m := range members {
		membersByID[m.ID] = m
	}
	sportsByID := make(map[string]domain.Sport, len(sports))
	for _, s := range sports {
		sportsByID[s.ID] = s
	}
	promotionsByID := make(map[string]domain.Promotion, len(promotions))
	for _, p := range promotions {
		promotionsByID[p.ID] = p
	}

	views := make([]FeeView, 0, len(fees))
	for _, fee := range fees {
		view := FeeView{Fee: fee}
		if m, ok := membersByID[fee.MemberID]; ok {
			view.MemberName = m.FullName()
			view.MemberDocument = m.DocumentNumber
			view.MemberActive = m.Active
			for _, pid := range m.PromotionIDs {
				if p, ok := promotionsByID[pid]; ok {
					view.Promotions = append(view.Promotions, p)
				}
			}
		}
		if s, ok := sportsByID[fee.SportID]; ok {
			view.SportName = s.Name
		}
		views = append(views, view)
	}

	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Period != b.Period {
			if a.Period.Year != b.Period.Year {
				return a.Period.Year > b.Period.Year
			}
			return a.Period.Month > b.Period.Month
		}
		if a.MemberName != b.MemberName {
			return a.MemberName < b.MemberName
		}
		return a.SportName < b.SportName
	})

	return views
}

// FilterFeeViews returns the views matching q, preserving order.
func FilterFeeViews(views []FeeView, q FeeQuery) []FeeView {
	text := strings.ToLower(strings.TrimSpace(q.Text))

	out := make([]FeeView, 0, len(views))
	for _, v := range views {
		if q.MemberID != "" && v.MemberID != q.MemberID {
			continue
		}
		if q.SportID != "" && v.SportID != q.SportID {
			continue
		}
		if !q.Period.IsZero() && v.Period != q.Period {
			continue
		}
		if len(q.States) > 0 && !containsState(q.States, v.State) {
			continue
		}
		if text != "" && !matchesText(v, text) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Fees unwraps views back to plain fees.
func Fees(views []FeeView) []domain.Fee {
	fees := make([]domain.Fee, len(views))
	for i, v := range views {
		fees[i] = v.Fee
	}
	return fees
}

func containsState(states []domain.FeeState, s domain.FeeState) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}

func matchesText(v FeeView, text string) bool {
	for _, field := range []string{v.MemberName, v.MemberDocument, v.SportName, v.Concept, v.Period.String()} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}
