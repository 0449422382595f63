package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clublibertad/billing-service/internal/domain"
)

const feeColumns = `
	f.id, f.member_id, f.sport_id, f.period, f.amount,
	f.instructor_fee, f.insurance_fee, f.social_fee,
	f.state, f.due_date, f.generated_at, f.concept, f.payment_id,
	f.created_at, f.updated_at
`

func scanFee(row pgx.Row) (*domain.Fee, error) {
	var (
		fee    domain.Fee
		period string
	)
	if err := row.Scan(
		&fee.ID,
		&fee.MemberID,
		&fee.SportID,
		&period,
		&fee.Amount,
		&fee.InstructorFee,
		&fee.InsuranceFee,
		&fee.SocialFee,
		&fee.State,
		&fee.DueDate,
		&fee.GeneratedAt,
		&fee.Concept,
		&fee.PaymentID,
		&fee.CreatedAt,
		&fee.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p, err := domain.ParsePeriod(period)
	if err != nil {
		return nil, fmt.Errorf("fee %s: %w", fee.ID, err)
	}
	fee.Period = p
	return &fee, nil
}

func (r *Repository) queryFees(ctx context.Context, query string, args ...any) ([]domain.Fee, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fees []domain.Fee
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, err
		}
		fees = append(fees, *fee)
	}
	return fees, rows.Err()
}

// FindFee returns the fee for (member, sport, period), or nil, nil if none exists.
func (r *Repository) FindFee(ctx context.Context, memberID, sportID string, period domain.Period) (*domain.Fee, error) {
	fee, err := scanFee(r.db.QueryRow(ctx,
		`SELECT `+feeColumns+` FROM fees f WHERE f.member_id = $1 AND f.sport_id = $2 AND f.period = $3`,
		memberID, sportID, period.String(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return fee, nil
}

// InsertFee creates a fee unless one already exists for its (member, sport,
// period). It reports whether a row was inserted.
func (r *Repository) InsertFee(ctx context.Context, fee *domain.Fee) (bool, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO fees (
			id, member_id, sport_id, period, amount,
			instructor_fee, insurance_fee, social_fee,
			state, due_date, generated_at, concept
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::DATE, $11, $12)
		ON CONFLICT (member_id, sport_id, period) DO NOTHING
		RETURNING created_at, updated_at
	`,
		fee.ID,
		fee.MemberID,
		fee.SportID,
		fee.Period.String(),
		fee.Amount,
		fee.InstructorFee,
		fee.InsuranceFee,
		fee.SocialFee,
		string(fee.State),
		fee.DueDate.Format(time.DateOnly),
		fee.GeneratedAt,
		fee.Concept,
	).Scan(&fee.CreatedAt, &fee.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert fee: %w", err)
	}
	return true, nil
}

// UpdateFeeState moves a fee from expected to next. It reports false when the
// fee was not in the expected state.
func (r *Repository) UpdateFeeState(ctx context.Context, feeID string, expected, next domain.FeeState) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE fees
		SET state = $3, updated_at = NOW()
		WHERE id = $1 AND state = $2
	`, feeID, string(expected), string(next))
	if err != nil {
		return false, fmt.Errorf("update fee state: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFeePaid settles a fee that is still in the expected state.
func (r *Repository) MarkFeePaid(ctx context.Context, feeID string, expected domain.FeeState, paymentID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE fees
		SET state = 'PAID', payment_id = $3, updated_at = NOW()
		WHERE id = $1 AND state = $2 AND payment_id IS NULL
	`, feeID, string(expected), paymentID)
	if err != nil {
		return false, fmt.Errorf("mark fee paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetFeesByIDs loads the given fees and locks them for the rest of the
// transaction. Missing or malformed ids are simply absent from the result.
func (r *Repository) GetFeesByIDs(ctx context.Context, feeIDs []string) ([]domain.Fee, error) {
	feeIDs = validIDs(feeIDs)
	if len(feeIDs) == 0 {
		return nil, nil
	}
	return r.queryFees(ctx,
		`SELECT `+feeColumns+` FROM fees f WHERE f.id = ANY($1::uuid[]) ORDER BY f.id FOR UPDATE`,
		feeIDs,
	)
}

// ListFees returns the fees matching filter, newest period first. A member
// or sport filter that is not a uuid matches nothing.
func (r *Repository) ListFees(ctx context.Context, filter domain.FeeFilter) ([]domain.Fee, error) {
	if (filter.MemberID != "" && !validID(filter.MemberID)) || (filter.SportID != "" && !validID(filter.SportID)) {
		return nil, nil
	}
	where, args := feeFilterClause(filter)
	return r.queryFees(ctx, `SELECT `+feeColumns+` FROM fees f`+where+` ORDER BY f.period DESC, f.due_date, f.id`, args...)
}

// InsertPayment stores the payment header. Fee links are written by MarkFeePaid.
func (r *Repository) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	promotionIDs := payment.PromotionIDs
	if promotionIDs == nil {
		promotionIDs = []string{}
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO payments (
			id, member_id, payment_date, original_amount, discount_amount,
			total_amount, method, note, promotion_ids
		)
		VALUES ($1, $2, $3::DATE, $4, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING created_at
	`,
		payment.ID,
		payment.MemberID,
		payment.PaymentDate.Format(time.DateOnly),
		payment.OriginalAmount,
		payment.DiscountAmount,
		payment.TotalAmount,
		string(payment.Method),
		payment.Note,
		promotionIDs,
	).Scan(&payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// ListPayments returns the payments matching filter with the ids of the fees
// each one settled, most recent first.
func (r *Repository) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	if filter.MemberID != "" && !validID(filter.MemberID) {
		return nil, nil
	}
	where, args := paymentFilterClause(filter)
	query := `
		SELECT p.id, p.member_id, p.payment_date, p.original_amount, p.discount_amount,
		       p.total_amount, p.method, COALESCE(p.note, ''), p.promotion_ids, p.created_at,
		       COALESCE(array_agg(f.id::text ORDER BY f.id) FILTER (WHERE f.id IS NOT NULL), '{}')
		FROM payments p
		LEFT JOIN fees f ON f.payment_id = p.id` + where + `
		GROUP BY p.id
		ORDER BY p.payment_date DESC, p.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(
			&p.ID,
			&p.MemberID,
			&p.PaymentDate,
			&p.OriginalAmount,
			&p.DiscountAmount,
			&p.TotalAmount,
			&p.Method,
			&p.Note,
			&p.PromotionIDs,
			&p.CreatedAt,
			&p.FeeIDs,
		); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
