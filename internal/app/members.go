package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clublibertad/billing-service/internal/domain"
	"github.com/clublibertad/billing-service/internal/store"
)

// MemberInput is the data needed to register a member.
type MemberInput struct {
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	DocumentNumber string          `json:"document_number"`
	BirthDate      *time.Time      `json:"birth_date,omitempty"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Category       domain.Category `json:"category"`
	GuardianID     *string         `json:"guardian_id,omitempty"`
	SportIDs       []string        `json:"sport_ids"`
	PromotionIDs   []string        `json:"promotion_ids"`
}

// CreateMember registers a new member. When the document number is already in
// the registry it returns a *domain.DuplicateCandidateError carrying the
// existing record; the caller may then use CreateMemberUsingExisting.
func (s Service) CreateMember(ctx context.Context, in MemberInput) (*domain.Member, error) {
	return s.createMember(ctx, in, false)
}

// CreateMemberUsingExisting registers a member for a person already in the
// registry, taking their name from the registry record.
func (s Service) CreateMemberUsingExisting(ctx context.Context, in MemberInput) (*domain.Member, error) {
	return s.createMember(ctx, in, true)
}

func (s Service) createMember(ctx context.Context, in MemberInput, useExisting bool) (*domain.Member, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.DocumentNumber = strings.TrimSpace(in.DocumentNumber)

	if in.DocumentNumber == "" {
		return nil, &domain.ValidationError{Field: "document_number", Reason: "document number is required"}
	}
	if !useExisting {
		if in.FirstName == "" {
			return nil, &domain.ValidationError{Field: "first_name", Reason: "first name is required"}
		}
		if in.LastName == "" {
			return nil, &domain.ValidationError{Field: "last_name", Reason: "last name is required"}
		}
	}

	category, err := domain.ParseCategory(string(in.Category))
	if err != nil {
		return nil, err
	}

	var member *domain.Member
	err = s.repo.WithTx(ctx, func(q store.Queries) error {
		member = nil

		guardianID, err := resolveGuardian(ctx, q, category, in.GuardianID)
		if err != nil {
			return err
		}
		if err := checkSports(ctx, q, in.SportIDs); err != nil {
			return err
		}
		if err := checkPromotions(ctx, q, in.PromotionIDs); err != nil {
			return err
		}

		record, err := q.FindRegistryRecord(ctx, in.DocumentNumber)
		if err != nil {
			return fmt.Errorf("find registry record: %w", err)
		}

		now := s.now()
		switch {
		case record != nil && !useExisting:
			return &domain.DuplicateCandidateError{Candidate: *record}
		case record == nil && useExisting:
			return &domain.NotFoundError{Entity: "registry record", ID: in.DocumentNumber}
		case record != nil:
			in.FirstName = record.FirstName
			in.LastName = record.LastName
		default:
			if err := q.InsertRegistryRecord(ctx, &domain.RegistryRecord{
				ID:             uuid.NewString(),
				FirstName:      in.FirstName,
				LastName:       in.LastName,
				DocumentNumber: in.DocumentNumber,
				RegisteredAt:   now,
			}); err != nil {
				return err
			}
		}

		m := &domain.Member{
			ID:             uuid.NewString(),
			FirstName:      in.FirstName,
			LastName:       in.LastName,
			DocumentNumber: in.DocumentNumber,
			BirthDate:      in.BirthDate,
			Email:          strings.TrimSpace(in.Email),
			Phone:          strings.TrimSpace(in.Phone),
			Category:       category,
			GuardianID:     guardianID,
			Active:         true,
			SportIDs:       dedupe(in.SportIDs),
			PromotionIDs:   dedupe(in.PromotionIDs),
			RegisteredAt:   now,
		}
		if err := q.InsertMember(ctx, m); err != nil {
			return err
		}

		member = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("member registered", "member_id", member.ID, "category", string(member.Category))
	return member, nil
}

func resolveGuardian(ctx context.Context, q store.Queries, category domain.Category, guardianID *string) (*string, error) {
	if !category.RequiresGuardian() {
		return nil, nil
	}
	if guardianID == nil || strings.TrimSpace(*guardianID) == "" {
		return nil, &domain.ValidationError{Field: "guardian_id", Reason: "players must have a guardian"}
	}
	id := strings.TrimSpace(*guardianID)
	if _, err := q.GetMemberByID(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ValidationError{Field: "guardian_id", Reason: "guardian does not exist", Err: err}
		}
		return nil, err
	}
	return &id, nil
}

func checkSports(ctx context.Context, q store.Queries, sportIDs []string) error {
	for _, id := range sportIDs {
		if _, err := q.GetSportByID(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return &domain.ValidationError{Field: "sport_ids", Reason: fmt.Sprintf("sport %s does not exist", id), Err: err}
			}
			return err
		}
	}
	return nil
}

func checkPromotions(ctx context.Context, q store.Queries, promotionIDs []string) error {
	if len(promotionIDs) == 0 {
		return nil
	}
	promotions, err := q.ListPromotions(ctx)
	if err != nil {
		return fmt.Errorf("list promotions: %w", err)
	}
	known := make(map[string]bool, len(promotions))
	for _, p := range promotions {
		known[p.ID] = true
	}
	for _, id := range promotionIDs {
		if !known[id] {
			return &domain.ValidationError{
				Field:  "promotion_ids",
				Reason: fmt.Sprintf("promotion %s does not exist", id),
				Err:    &domain.NotFoundError{Entity: "promotion", ID: id},
			}
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
