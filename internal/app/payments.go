package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clublibertad/billing-service/internal/billing"
	"github.com/clublibertad/billing-service/internal/domain"
	"github.com/clublibertad/billing-service/internal/store"
)

// PaymentRequest is the input of RegisterPayment. PaymentDate is a civil
// date; the zero value means today in the business time zone.
type PaymentRequest struct {
	MemberID     string               `json:"member_id"`
	FeeIDs       []string             `json:"fee_ids"`
	Method       domain.PaymentMethod `json:"method"`
	PromotionIDs []string             `json:"promotion_ids"`
	Note         string               `json:"note"`
	PaymentDate  time.Time            `json:"payment_date"`
}

// PaymentQuote is what a payment over a set of fees would cost.
type PaymentQuote struct {
	MemberID string                     `json:"member_id"`
	FeeIDs   []string                   `json:"fee_ids"`
	Base     decimal.Decimal            `json:"base"`
	Discount decimal.Decimal            `json:"discount"`
	Total    decimal.Decimal            `json:"total"`
	Applied  []billing.AppliedPromotion `json:"applied"`
	Payable  bool                       `json:"payable"`
}

// settlement is a validated set of fees plus the discount on them.
type settlement struct {
	fees     []domain.Fee
	discount billing.Discount
}

// RegisterPayment records one payment covering all requested fees and marks
// each of them PAID. Either everything persists or nothing does.
func (s Service) RegisterPayment(ctx context.Context, req PaymentRequest) (*domain.Payment, error) {
	method, err := domain.ParsePaymentMethod(string(req.Method))
	if err != nil {
		return nil, err
	}
	if err := validateFeeIDs(req.FeeIDs); err != nil {
		return nil, err
	}

	paymentDate := s.Today()
	if !req.PaymentDate.IsZero() {
		paymentDate = domain.CivilDate(req.PaymentDate, time.UTC)
	}

	var payment *domain.Payment
	err = s.repo.WithTx(ctx, func(q store.Queries) error {
		payment = nil

		st, err := s.prepareSettlement(ctx, q, req.MemberID, req.FeeIDs, req.PromotionIDs)
		if err != nil {
			return err
		}
		if !st.discount.Total().IsPositive() {
			return &domain.ValidationError{Field: "promotion_ids", Reason: "payment total after discounts must be greater than zero"}
		}

		p := &domain.Payment{
			ID:             uuid.NewString(),
			MemberID:       req.MemberID,
			PaymentDate:    paymentDate,
			OriginalAmount: st.discount.Base,
			DiscountAmount: st.discount.Amount,
			TotalAmount:    st.discount.Total(),
			Method:         method,
			Note:           req.Note,
			FeeIDs:         append([]string(nil), req.FeeIDs...),
			PromotionIDs:   appliedIDs(st.discount.Applied),
		}

		if err := q.InsertPayment(ctx, p); err != nil {
			return err
		}

		for _, fee := range st.fees {
			ok, err := q.MarkFeePaid(ctx, fee.ID, fee.State, p.ID)
			if err != nil {
				return err
			}
			if !ok {
				return &domain.ConflictError{Entity: "fee", ID: fee.ID, Expected: string(fee.State)}
			}
		}

		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishPaymentEvent(ctx, *payment)
	s.metrics.PaymentRegistered(payment.Method, payment.TotalAmount)
	s.logger.Info("payment registered",
		"payment_id", payment.ID,
		"member_id", payment.MemberID,
		"count", len(payment.FeeIDs),
		"total", payment.TotalAmount.StringFixed(billing.MoneyPlaces),
	)

	return payment, nil
}

// PreviewPayment runs the payment validation and discount computation without
// persisting anything. A quote whose total is not positive is returned with
// Payable false rather than as an error.
func (s Service) PreviewPayment(ctx context.Context, memberID string, feeIDs, promotionIDs []string) (*PaymentQuote, error) {
	if err := validateFeeIDs(feeIDs); err != nil {
		return nil, err
	}

	st, err := s.prepareSettlement(ctx, s.repo, memberID, feeIDs, promotionIDs)
	if err != nil {
		return nil, err
	}

	total := st.discount.Total()
	return &PaymentQuote{
		MemberID: memberID,
		FeeIDs:   append([]string(nil), feeIDs...),
		Base:     st.discount.Base,
		Discount: st.discount.Amount,
		Total:    total,
		Applied:  st.discount.Applied,
		Payable:  total.IsPositive(),
	}, nil
}

// prepareSettlement checks the member and every fee and computes the discount.
func (s Service) prepareSettlement(ctx context.Context, q store.Queries, memberID string, feeIDs, promotionIDs []string) (*settlement, error) {
	if memberID == "" {
		return nil, &domain.ValidationError{Field: "member_id", Reason: "member is required"}
	}
	if _, err := q.GetMemberByID(ctx, memberID); err != nil {
		return nil, err
	}

	fees, err := q.GetFeesByIDs(ctx, feeIDs)
	if err != nil {
		return nil, fmt.Errorf("load fees: %w", err)
	}
	byID := make(map[string]domain.Fee, len(fees))
	for _, fee := range fees {
		byID[fee.ID] = fee
	}

	ordered := make([]domain.Fee, 0, len(feeIDs))
	base := decimal.Zero
	for _, id := range feeIDs {
		fee, ok := byID[id]
		if !ok {
			return nil, &domain.ValidationError{
				Field:  "fee_ids",
				Reason: fmt.Sprintf("fee %s does not exist", id),
				Err:    &domain.NotFoundError{Entity: "fee", ID: id},
			}
		}
		if fee.MemberID != memberID {
			return nil, &domain.ValidationError{Field: "fee_ids", Reason: fmt.Sprintf("fee %s belongs to another member", id)}
		}
		if !fee.State.Payable() {
			return nil, &domain.ValidationError{Field: "fee_ids", Reason: fmt.Sprintf("fee %s is already paid", id)}
		}
		ordered = append(ordered, fee)
		base = base.Add(fee.Amount)
	}

	if !base.IsPositive() {
		return nil, &domain.ValidationError{Field: "fee_ids", Reason: "selected fees add up to zero"}
	}

	promotions, err := q.GetActivePromotions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load promotions: %w", err)
	}

	return &settlement{
		fees:     ordered,
		discount: billing.ApplyPromotions(base, promotionIDs, promotions),
	}, nil
}

func validateFeeIDs(feeIDs []string) error {
	if len(feeIDs) == 0 {
		return &domain.ValidationError{Field: "fee_ids", Reason: "at least one fee is required"}
	}
	seen := make(map[string]bool, len(feeIDs))
	for _, id := range feeIDs {
		if id == "" {
			return &domain.ValidationError{Field: "fee_ids", Reason: "fee id cannot be empty"}
		}
		if seen[id] {
			return &domain.ValidationError{Field: "fee_ids", Reason: fmt.Sprintf("fee %s is listed twice", id)}
		}
		seen[id] = true
	}
	return nil
}

func appliedIDs(applied []billing.AppliedPromotion) []string {
	if len(applied) == 0 {
		return nil
	}
	ids := make([]string, len(applied))
	for i, a := range applied {
		ids[i] = a.PromotionID
	}
	return ids
}
