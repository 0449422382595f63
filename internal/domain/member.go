/**
 * @description
 * Domain models for the collaborators the billing engine reads:
 * members, sports, promotions and the historic member registry.
 */
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is the closed set of member categories.
type Category string

const (
	CategorySocio        Category = "SOCIO"
	CategoryJugador      Category = "JUGADOR"
	CategorySocioJugador Category = "SOCIOYJUGADOR"
)

// ParseCategory accepts a category name in any case.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(raw)))
	switch c {
	case CategorySocio, CategoryJugador, CategorySocioJugador:
		return c, nil
	}
	return "", &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown member category %q", raw)}
}

// RequiresGuardian reports whether members of this category must name a guardian.
func (c Category) RequiresGuardian() bool {
	switch c {
	case CategoryJugador:
		return true
	case CategorySocio, CategorySocioJugador:
		return false
	}
	return false
}

// Member is a club member. Owned by the members collaborator, read here.
type Member struct {
	ID             string     `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	DocumentNumber string     `json:"document_number"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Category       Category   `json:"category"`
	GuardianID     *string    `json:"guardian_id,omitempty"`
	Active         bool       `json:"active"`
	SportIDs       []string   `json:"sport_ids"`
	PromotionIDs   []string   `json:"promotion_ids"`
	RegisteredAt   time.Time  `json:"registered_at"`
}

// FullName joins first and last name.
func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// Sport is a sport offered by the club with its monthly fee components.
type Sport struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	InstructorFee decimal.Decimal `json:"instructor_fee"`
	InsuranceFee  decimal.Decimal `json:"insurance_fee"`
	SocialFee     decimal.Decimal `json:"social_fee"`
	MemberCount   int             `json:"member_count"`
}

// MonthlyFee is the effective monthly fee: instructor + insurance + social.
func (s Sport) MonthlyFee() decimal.Decimal {
	return s.InstructorFee.Add(s.InsuranceFee).Add(s.SocialFee)
}

// DiscountKind is how a promotion discounts a base amount.
type DiscountKind string

const (
	DiscountPercentage  DiscountKind = "PERCENTAGE"
	DiscountFixedAmount DiscountKind = "FIXED_AMOUNT"
)

var hundred = decimal.NewFromInt(100)

// Promotion is a named discount rule.
type Promotion struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Kind   DiscountKind    `json:"kind"`
	Value  decimal.Decimal `json:"value"`
	Active bool            `json:"active"`
}

// Validate checks the value bounds of the promotion's kind.
func (p Promotion) Validate() error {
	switch p.Kind {
	case DiscountPercentage:
		if !p.Value.IsPositive() || p.Value.GreaterThan(hundred) {
			return &ValidationError{Field: "value", Reason: "percentage promotions need 0 < value <= 100"}
		}
	case DiscountFixedAmount:
		if !p.Value.IsPositive() {
			return &ValidationError{Field: "value", Reason: "fixed amount promotions need value > 0"}
		}
	default:
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown discount kind %q", p.Kind)}
	}
	return nil
}

// RegistryRecord is the historic roster entry for a person, keyed by document number.
// It survives member deactivation and is what duplicate detection matches against.
type RegistryRecord struct {
	ID             string     `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	DocumentNumber string     `json:"document_number"`
	RegisteredAt   time.Time  `json:"registered_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
	LeaveNote      *string    `json:"leave_note,omitempty"`
}
