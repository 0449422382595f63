package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clublibertad/billing-service/internal/domain"
)

const memberColumns = `
	m.id, m.first_name, m.last_name, m.document_number, m.birth_date,
	COALESCE(m.email, ''), COALESCE(m.phone, ''), m.category, m.guardian_id,
	m.active, m.registered_at,
	COALESCE((SELECT array_agg(ms.sport_id::text ORDER BY ms.sport_id)
	          FROM member_sports ms WHERE ms.member_id = m.id), '{}'),
	COALESCE((SELECT array_agg(mp.promotion_id::text ORDER BY mp.promotion_id)
	          FROM member_promotions mp WHERE mp.member_id = m.id), '{}')
`

func scanMember(row pgx.Row) (*domain.Member, error) {
	var m domain.Member
	if err := row.Scan(
		&m.ID,
		&m.FirstName,
		&m.LastName,
		&m.DocumentNumber,
		&m.BirthDate,
		&m.Email,
		&m.Phone,
		&m.Category,
		&m.GuardianID,
		&m.Active,
		&m.RegisteredAt,
		&m.SportIDs,
		&m.PromotionIDs,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) queryMembers(ctx context.Context, query string, args ...any) ([]domain.Member, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// GetActiveMembers returns every active member with their sport and promotion ids.
func (r *Repository) GetActiveMembers(ctx context.Context) ([]domain.Member, error) {
	return r.queryMembers(ctx, `SELECT `+memberColumns+` FROM members m WHERE m.active ORDER BY m.last_name, m.first_name`)
}

// ListMembers returns all members, active or not.
func (r *Repository) ListMembers(ctx context.Context) ([]domain.Member, error) {
	return r.queryMembers(ctx, `SELECT `+memberColumns+` FROM members m ORDER BY m.last_name, m.first_name`)
}

// GetMemberByID fetches one member.
func (r *Repository) GetMemberByID(ctx context.Context, memberID string) (*domain.Member, error) {
	if !validID(memberID) {
		return nil, &domain.NotFoundError{Entity: "member", ID: memberID}
	}
	m, err := scanMember(r.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM members m WHERE m.id = $1`, memberID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "member", ID: memberID}
		}
		return nil, err
	}
	return m, nil
}

// InsertMember stores a member and its sport and promotion associations.
// Call it inside WithTx so the associations commit together.
func (r *Repository) InsertMember(ctx context.Context, member *domain.Member) error {
	var birthDate *string
	if member.BirthDate != nil {
		formatted := member.BirthDate.Format(time.DateOnly)
		birthDate = &formatted
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO members (
			id, first_name, last_name, document_number, birth_date,
			email, phone, category, guardian_id, active, registered_at
		)
		VALUES ($1, $2, $3, $4, $5::DATE, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)
		RETURNING registered_at
	`,
		member.ID,
		member.FirstName,
		member.LastName,
		member.DocumentNumber,
		birthDate,
		member.Email,
		member.Phone,
		string(member.Category),
		member.GuardianID,
		member.Active,
		member.RegisteredAt,
	).Scan(&member.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ValidationError{Field: "document_number", Reason: "a member with this document number already exists"}
		}
		if isInvalidInput(err) {
			return &domain.ValidationError{Field: "member", Reason: "malformed value", Err: err}
		}
		return fmt.Errorf("insert member: %w", err)
	}

	for _, sportID := range member.SportIDs {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO member_sports (member_id, sport_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			member.ID, sportID,
		); err != nil {
			return fmt.Errorf("insert member sport: %w", err)
		}
	}
	for _, promotionID := range member.PromotionIDs {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO member_promotions (member_id, promotion_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			member.ID, promotionID,
		); err != nil {
			return fmt.Errorf("insert member promotion: %w", err)
		}
	}
	return nil
}

const sportColumns = `
	s.id, s.name, s.instructor_fee, s.insurance_fee, s.social_fee,
	(SELECT COUNT(*) FROM member_sports ms
	 JOIN members m ON m.id = ms.member_id AND m.active
	 WHERE ms.sport_id = s.id)
`

func scanSport(row pgx.Row) (*domain.Sport, error) {
	var s domain.Sport
	if err := row.Scan(&s.ID, &s.Name, &s.InstructorFee, &s.InsuranceFee, &s.SocialFee, &s.MemberCount); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSports returns the sport catalog.
func (r *Repository) GetSports(ctx context.Context) ([]domain.Sport, error) {
	rows, err := r.db.Query(ctx, `SELECT `+sportColumns+` FROM sports s ORDER BY s.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sports []domain.Sport
	for rows.Next() {
		s, err := scanSport(rows)
		if err != nil {
			return nil, err
		}
		sports = append(sports, *s)
	}
	return sports, rows.Err()
}

// GetSportByID fetches one sport.
func (r *Repository) GetSportByID(ctx context.Context, sportID string) (*domain.Sport, error) {
	if !validID(sportID) {
		return nil, &domain.NotFoundError{Entity: "sport", ID: sportID}
	}
	s, err := scanSport(r.db.QueryRow(ctx, `SELECT `+sportColumns+` FROM sports s WHERE s.id = $1`, sportID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "sport", ID: sportID}
		}
		return nil, err
	}
	return s, nil
}

func (r *Repository) queryPromotions(ctx context.Context, query string) ([]domain.Promotion, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var promotions []domain.Promotion
	for rows.Next() {
		var p domain.Promotion
		if err := rows.Scan(&p.ID, &p.Name, &p.Kind, &p.Value, &p.Active); err != nil {
			return nil, err
		}
		promotions = append(promotions, p)
	}
	return promotions, rows.Err()
}

// GetActivePromotions returns the promotions that can apply to new payments.
func (r *Repository) GetActivePromotions(ctx context.Context) ([]domain.Promotion, error) {
	return r.queryPromotions(ctx, `SELECT id, name, kind, value, active FROM promotions WHERE active ORDER BY name`)
}

// ListPromotions returns every promotion, including inactive ones.
func (r *Repository) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	return r.queryPromotions(ctx, `SELECT id, name, kind, value, active FROM promotions ORDER BY name`)
}

// FindRegistryRecord looks up the historic roster by document number.
// It returns nil, nil when the document was never registered.
func (r *Repository) FindRegistryRecord(ctx context.Context, documentNumber string) (*domain.RegistryRecord, error) {
	var rec domain.RegistryRecord
	err := r.db.QueryRow(ctx, `
		SELECT id, first_name, last_name, document_number, registered_at, left_at, leave_note
		FROM member_registry
		WHERE document_number = $1
	`, documentNumber).Scan(
		&rec.ID,
		&rec.FirstName,
		&rec.LastName,
		&rec.DocumentNumber,
		&rec.RegisteredAt,
		&rec.LeftAt,
		&rec.LeaveNote,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertRegistryRecord adds a person to the historic roster.
func (r *Repository) InsertRegistryRecord(ctx context.Context, record *domain.RegistryRecord) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO member_registry (id, first_name, last_name, document_number, registered_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING registered_at
	`, record.ID, record.FirstName, record.LastName, record.DocumentNumber, record.RegisteredAt).Scan(&record.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ValidationError{Field: "document_number", Reason: "document number is already in the registry"}
		}
		return fmt.Errorf("insert registry record: %w", err)
	}
	return nil
}
