/**
 * @description
 * Domain models for club fees (cuotas) and the payments that settle them.
 */
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FeeState is the lifecycle state of a fee.
type FeeState string

const (
	FeeStateGenerated FeeState = "GENERATED"
	FeeStateOverdue   FeeState = "OVERDUE"
	FeeStatePaid      FeeState = "PAID"
)

// Valid reports whether s is a known fee state.
func (s FeeState) Valid() bool {
	switch s {
	case FeeStateGenerated, FeeStateOverdue, FeeStatePaid:
		return true
	}
	return false
}

// Payable reports whether a fee in state s can still be settled.
func (s FeeState) Payable() bool {
	return s == FeeStateGenerated || s == FeeStateOverdue
}

// ParseFeeState accepts a state name in any case.
func ParseFeeState(raw string) (FeeState, error) {
	s := FeeState(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", &ValidationError{Field: "state", Reason: fmt.Sprintf("unknown fee state %q", raw)}
	}
	return s, nil
}

// Fee is a single billing obligation for one member, one sport, one period.
type Fee struct {
	ID            string          `json:"id"`
	MemberID      string          `json:"member_id"`
	SportID       string          `json:"sport_id"`
	Period        Period          `json:"period"`
	Amount        decimal.Decimal `json:"amount"`
	InstructorFee decimal.Decimal `json:"instructor_fee"`
	InsuranceFee  decimal.Decimal `json:"insurance_fee"`
	SocialFee     decimal.Decimal `json:"social_fee"`
	State         FeeState        `json:"state"`
	DueDate       time.Time       `json:"due_date"`
	GeneratedAt   time.Time       `json:"generated_at"`
	Concept       string          `json:"concept"`
	PaymentID     *string         `json:"payment_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// FeeFilter narrows fee listings. Zero values mean "any".
type FeeFilter struct {
	MemberID  string
	SportID   string
	Period    Period
	States    []FeeState
	DueBefore time.Time
}

// PaymentMethod is how a payment was collected.
type PaymentMethod string

const (
	PaymentMethodCash           PaymentMethod = "CASH"
	PaymentMethodTransfer       PaymentMethod = "TRANSFER"
	PaymentMethodAutomaticDebit PaymentMethod = "AUTOMATIC_DEBIT"
)

// ParsePaymentMethod accepts a method name in any case.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodAutomaticDebit:
		return m, nil
	}
	return "", &ValidationError{Field: "method", Reason: fmt.Sprintf("unknown payment method %q", raw)}
}

// Payment is a settlement event covering one or more fees of a single member.
type Payment struct {
	ID             string          `json:"id"`
	MemberID       string          `json:"member_id"`
	PaymentDate    time.Time       `json:"payment_date"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Method         PaymentMethod   `json:"method"`
	Note           string          `json:"note,omitempty"`
	FeeIDs         []string        `json:"fee_ids"`
	PromotionIDs   []string        `json:"promotion_ids,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PaymentFilter narrows payment listings. Zero values mean "any".
type PaymentFilter struct {
	MemberID string
	From     time.Time
	To       time.Time
}
