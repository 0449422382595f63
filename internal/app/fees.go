package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clublibertad/billing-service/internal/domain"
	"github.com/clublibertad/billing-service/internal/store"
)

// FeeGenerationResult summarizes fee generation output.
type FeeGenerationResult struct {
	Period      domain.Period `json:"period"`
	DueDate     time.Time     `json:"due_date"`
	FeesCreated int           `json:"fees_created"`
}

// OverdueResult summarizes overdue promotion.
type OverdueResult struct {
	Today         time.Time `json:"today"`
	MarkedOverdue int       `json:"marked_overdue"`
}

// RefreshResult summarizes a billing refresh.
type RefreshResult struct {
	Period    domain.Period `json:"period"`
	Promoted  int           `json:"promoted"`
	Generated int           `json:"generated"`
	Skipped   bool          `json:"skipped"`
}

// GenerateCurrentPeriodFees creates the missing fees of the current period
// for every active member and each of their sports. Existing fees are left
// alone, so calling it repeatedly is safe.
func (s Service) GenerateCurrentPeriodFees(ctx context.Context) (*FeeGenerationResult, error) {
	now := s.now()
	period := domain.PeriodOf(now.In(s.loc))
	dueDate := period.DueDate(s.dueDay)

	var created []domain.Fee
	err := s.repo.WithTx(ctx, func(q store.Queries) error {
		created = nil

		members, err := q.GetActiveMembers(ctx)
		if err != nil {
			return fmt.Errorf("load active members: %w", err)
		}
		sports, err := q.GetSports(ctx)
		if err != nil {
			return fmt.Errorf("load sports: %w", err)
		}
		sportsByID := make(map[string]domain.Sport, len(sports))
		for _, sp := range sports {
			sportsByID[sp.ID] = sp
		}

		for _, member := range members {
			for _, sportID := range member.SportIDs {
				sport, ok := sportsByID[sportID]
				if !ok {
					s.logger.Warn("member references unknown sport, skipping", "member_id", member.ID, "sport_id", sportID)
					continue
				}

				existing, err := q.FindFee(ctx, member.ID, sport.ID, period)
				if err != nil {
					return fmt.Errorf("find fee for member %s sport %s: %w", member.ID, sport.ID, err)
				}
				if existing != nil {
					continue
				}

				fee := domain.Fee{
					ID:            uuid.NewString(),
					MemberID:      member.ID,
					SportID:       sport.ID,
					Period:        period,
					Amount:        sport.MonthlyFee(),
					InstructorFee: sport.InstructorFee,
					InsuranceFee:  sport.InsuranceFee,
					SocialFee:     sport.SocialFee,
					State:         domain.FeeStateGenerated,
					DueDate:       dueDate,
					GeneratedAt:   now,
					Concept:       sport.Name,
				}
				inserted, err := q.InsertFee(ctx, &fee)
				if err != nil {
					return fmt.Errorf("insert fee for member %s sport %s: %w", member.ID, sport.ID, err)
				}
				if inserted {
					created = append(created, fee)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, fee := range created {
		s.publishFeeEvent(ctx, "fee.generated", fee)
	}
	s.metrics.FeesGenerated(len(created))
	if len(created) > 0 {
		s.logger.Info("generated fees", "period", period.String(), "count", len(created))
	}

	return &FeeGenerationResult{Period: period, DueDate: dueDate, FeesCreated: len(created)}, nil
}

// PromoteOverdueFees marks as OVERDUE every GENERATED fee whose due date is
// strictly before today. PAID fees are never touched and amounts are not
// recomputed.
func (s Service) PromoteOverdueFees(ctx context.Context) (*OverdueResult, error) {
	today := s.Today()

	var promoted []domain.Fee
	err := s.repo.WithTx(ctx, func(q store.Queries) error {
		promoted = nil

		candidates, err := q.ListFees(ctx, domain.FeeFilter{
			States:    []domain.FeeState{domain.FeeStateGenerated},
			DueBefore: today,
		})
		if err != nil {
			return fmt.Errorf("list overdue candidates: %w", err)
		}

		for _, fee := range candidates {
			ok, err := q.UpdateFeeState(ctx, fee.ID, domain.FeeStateGenerated, domain.FeeStateOverdue)
			if err != nil {
				return fmt.Errorf("mark fee %s overdue: %w", fee.ID, err)
			}
			if !ok {
				// Settled or promoted by someone else since the listing.
				continue
			}
			fee.State = domain.FeeStateOverdue
			promoted = append(promoted, fee)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, fee := range promoted {
		s.publishFeeEvent(ctx, "fee.overdue", fee)
	}
	s.metrics.FeesOverdue(len(promoted))
	if len(promoted) > 0 {
		s.logger.Info("marked fees overdue", "count", len(promoted))
	}

	return &OverdueResult{Today: today, MarkedOverdue: len(promoted)}, nil
}

// RefreshBilling runs the overdue promotion and then fee generation. When a
// refresh gate is configured, concurrent refreshes of the same period are
// coalesced and the losers report Skipped.
func (s Service) RefreshBilling(ctx context.Context) (*RefreshResult, error) {
	started := s.now()
	period := s.CurrentPeriod()
	result := &RefreshResult{Period: period}

	key := refreshGateKey(period)
	if s.gate != nil {
		acquired, err := s.gate.TryAcquire(ctx, key, s.gateTTL)
		switch {
		case err != nil:
			s.logger.Warn("refresh gate unavailable, refreshing anyway", "error", err)
		case !acquired:
			s.metrics.RefreshSkipped()
			result.Skipped = true
			return result, nil
		}
	}

	release := func() {
		if s.gate == nil {
			return
		}
		if err := s.gate.Release(ctx, key); err != nil {
			s.logger.Warn("failed to release refresh gate", "error", err)
		}
	}

	overdue, err := s.PromoteOverdueFees(ctx)
	if err != nil {
		release()
		return nil, fmt.Errorf("promote overdue fees: %w", err)
	}
	result.Promoted = overdue.MarkedOverdue

	generated, err := s.GenerateCurrentPeriodFees(ctx)
	if err != nil {
		release()
		return nil, fmt.Errorf("generate fees: %w", err)
	}
	result.Generated = generated.FeesCreated

	s.metrics.RefreshDuration(s.now().Sub(started))
	return result, nil
}

func refreshGateKey(period domain.Period) string {
	return "billing:refresh:" + period.String()
}
