/**
 * @description
 * Discount engine: aggregate discount of stacked promotions on a base amount.
 */
package billing

import (
	"github.com/shopspring/decimal"

	"github.com/clublibertad/billing-service/internal/domain"
)

// MoneyPlaces is the number of decimal places money is rounded to.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// AppliedPromotion is one promotion's contribution to a discount.
type AppliedPromotion struct {
	PromotionID string              `json:"promotion_id"`
	Name        string              `json:"name"`
	Kind        domain.DiscountKind `json:"kind"`
	Value       decimal.Decimal     `json:"value"`
	Amount      decimal.Decimal     `json:"amount"`
}

// Discount is the result of applying promotions to a base amount.
type Discount struct {
	Base    decimal.Decimal    `json:"base"`
	Amount  decimal.Decimal    `json:"amount"`
	Applied []AppliedPromotion `json:"applied"`
}

// Total is what remains payable after the discount.
func (d Discount) Total() decimal.Decimal {
	return d.Base.Sub(d.Amount)
}

// ComputeDiscount returns the discount the selected promotions grant on base.
//
// Contributions are additive and never compounded: 10% and 15% on 10000 give
// 2500, not 10000 - 10000*0.9*0.85. The result is clamped to [0, base].
// Selected ids that are unknown or inactive contribute nothing.
func ComputeDiscount(base decimal.Decimal, selectedPromotionIDs []string, activePromotions []domain.Promotion) decimal.Decimal {
	return ApplyPromotions(base, selectedPromotionIDs, activePromotions).Amount
}

// ApplyPromotions is ComputeDiscount with the per-promotion breakdown. The
// breakdown always adds up to Amount: once the base is used up, later
// promotions show a zero amount. A promotion selected twice counts once, and
// promotions whose value is out of bounds for their kind are skipped like
// inactive ones.
func ApplyPromotions(base decimal.Decimal, selectedPromotionIDs []string, activePromotions []domain.Promotion) Discount {
	result := Discount{Base: base, Amount: decimal.Zero}
	if !base.IsPositive() {
		return result
	}

	active := make(map[string]domain.Promotion, len(activePromotions))
	for _, p := range activePromotions {
		if p.Active && p.Validate() == nil {
			active[p.ID] = p
		}
	}

	seen := make(map[string]bool, len(selectedPromotionIDs))
	sum := decimal.Zero
	for _, id := range selectedPromotionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		promo, ok := active[id]
		if !ok {
			continue
		}

		var contribution decimal.Decimal
		switch promo.Kind {
		case domain.DiscountPercentage:
			contribution = base.Mul(promo.Value).Div(hundred)
		case domain.DiscountFixedAmount:
			contribution = promo.Value
		default:
			continue
		}

		sum = sum.Add(contribution)
		result.Applied = append(result.Applied, AppliedPromotion{
			PromotionID: promo.ID,
			Name:        promo.Name,
			Kind:        promo.Kind,
			Value:       promo.Value,
			Amount:      contribution.Round(MoneyPlaces),
		})
	}

	result.Amount = clamp(sum.Round(MoneyPlaces), base)
	allocate(result.Applied, result.Amount)
	return result
}

// allocate trims the per-promotion amounts so they add up to total. Each
// promotion gets at most what is left of total, in selection order, and the
// last one absorbs any rounding remainder.
func allocate(applied []AppliedPromotion, total decimal.Decimal) {
	if len(applied) == 0 {
		return
	}
	left := total
	for i := range applied {
		if applied[i].Amount.GreaterThan(left) {
			applied[i].Amount = left
		}
		left = left.Sub(applied[i].Amount)
	}
	last := &applied[len(applied)-1]
	last.Amount = last.Amount.Add(left)
}

func clamp(v, limit decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(limit) {
		return limit
	}
	return v
}
