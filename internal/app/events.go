package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clublibertad/billing-service/internal/domain"
)

// EventsExchange is the topic exchange billing events are published to.
const EventsExchange = "club.billing"

type feeEvent struct {
	FeeID     string          `json:"fee_id"`
	MemberID  string          `json:"member_id"`
	SportID   string          `json:"sport_id"`
	Period    domain.Period   `json:"period"`
	Amount    decimal.Decimal `json:"amount"`
	State     domain.FeeState `json:"state"`
	DueDate   time.Time       `json:"due_date"`
	Timestamp time.Time       `json:"timestamp"`
}

type paymentEvent struct {
	PaymentID      string               `json:"payment_id"`
	MemberID       string               `json:"member_id"`
	FeeIDs         []string             `json:"fee_ids"`
	OriginalAmount decimal.Decimal      `json:"original_amount"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	Method         domain.PaymentMethod `json:"method"`
	PaymentDate    time.Time            `json:"payment_date"`
	Timestamp      time.Time            `json:"timestamp"`
}

func (s Service) publishFeeEvent(ctx context.Context, routingKey string, fee domain.Fee) {
	s.publishEvent(ctx, routingKey, feeEvent{
		FeeID:     fee.ID,
		MemberID:  fee.MemberID,
		SportID:   fee.SportID,
		Period:    fee.Period,
		Amount:    fee.Amount,
		State:     fee.State,
		DueDate:   fee.DueDate,
		Timestamp: s.now(),
	})
}

func (s Service) publishPaymentEvent(ctx context.Context, payment domain.Payment) {
	s.publishEvent(ctx, "payment.registered", paymentEvent{
		PaymentID:      payment.ID,
		MemberID:       payment.MemberID,
		FeeIDs:         payment.FeeIDs,
		OriginalAmount: payment.OriginalAmount,
		DiscountAmount: payment.DiscountAmount,
		TotalAmount:    payment.TotalAmount,
		Method:         payment.Method,
		PaymentDate:    payment.PaymentDate,
		Timestamp:      s.now(),
	})
}

func (s Service) publishEvent(ctx context.Context, routingKey string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, EventsExchange, routingKey, payload); err != nil {
		s.logger.Warn("failed to publish billing event", "routing_key", routingKey, "error", err)
	}
}
