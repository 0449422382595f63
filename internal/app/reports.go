package app

import (
	"context"
	"fmt"

	"github.com/clublibertad/billing-service/internal/billing"
	"github.com/clublibertad/billing-service/internal/domain"
)

// FeeListing is what the billing screen shows: the filtered fees with their
// display data and the totals over exactly those fees.
type FeeListing struct {
	Fees    []billing.FeeView `json:"fees"`
	Summary billing.Summary   `json:"summary"`
	Refresh *RefreshResult    `json:"refresh,omitempty"`
}

// LoadBillingScreen refreshes billing and then lists fees. A failed refresh
// is logged and the listing is served from the current data.
func (s Service) LoadBillingScreen(ctx context.Context, q billing.FeeQuery) (*FeeListing, error) {
	refresh, err := s.RefreshBilling(ctx)
	if err != nil {
		s.logger.Error("billing refresh failed before listing", "error", err)
	}

	listing, err := s.ListFeeViews(ctx, q)
	if err != nil {
		return nil, err
	}
	listing.Refresh = refresh
	return listing, nil
}

// ListFeeViews joins fees with members, sports and promotions and applies q.
// The fee totals in the summary cover the listed fees only. IncomeToday and
// PaymentsToday are club-wide: only a member filter narrows them, since one
// payment may settle fees of several sports and periods.
func (s Service) ListFeeViews(ctx context.Context, q billing.FeeQuery) (*FeeListing, error) {
	fees, err := s.repo.ListFees(ctx, domain.FeeFilter{
		MemberID: q.MemberID,
		SportID:  q.SportID,
		Period:   q.Period,
		States:   q.States,
	})
	if err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}
	members, err := s.repo.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	sports, err := s.repo.GetSports(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sports: %w", err)
	}
	promotions, err := s.repo.ListPromotions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}

	today := s.Today()
	payments, err := s.repo.ListPayments(ctx, domain.PaymentFilter{MemberID: q.MemberID, From: today, To: today})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	views := billing.FilterFeeViews(billing.BuildFeeViews(fees, members, sports, promotions), q)
	return &FeeListing{
		Fees:    views,
		Summary: billing.Summarize(billing.Fees(views), payments, today),
	}, nil
}

// Summary returns the report totals over every fee, with a per-sport breakdown.
func (s Service) Summary(ctx context.Context) (*billing.Summary, error) {
	fees, err := s.repo.ListFees(ctx, domain.FeeFilter{})
	if err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}

	today := s.Today()
	payments, err := s.repo.ListPayments(ctx, domain.PaymentFilter{From: today, To: today})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	summary := billing.Summarize(fees, payments, today)
	summary.BySport = billing.TotalsBySport(fees)
	return &summary, nil
}

// ListPayments returns the payments matching filter.
func (s Service) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, &domain.ValidationError{Field: "to", Reason: "end date is before start date"}
	}
	return s.repo.ListPayments(ctx, filter)
}
