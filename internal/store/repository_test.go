package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	"github.com/clublibertad/billing-service/internal/domain"
)

const (
	memberUUID  = "6f1c2a52-8d7e-4a53-9a43-0c3b8e1f2d10"
	feeUUID     = "0b7e4c1d-2f3a-4b5c-8d6e-7f8091a2b3c4"
	paymentUUID = "9a8b7c6d-5e4f-4321-8765-43210fedcba9"
)

func newMockRepository(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to build pgx mock: %v", err)
	}
	t.Cleanup(pool.Close)
	return NewRepository(pool), pool
}

func expectationsMet(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertFee_ExistingFeeIsNotInserted(t *testing.T) {
	repo, pool := newMockRepository(t)
	pool.ExpectQuery("INSERT INTO fees").WillReturnError(pgx.ErrNoRows)

	inserted, err := repo.InsertFee(context.Background(), &domain.Fee{
		ID:       feeUUID,
		MemberID: memberUUID,
		SportID:  memberUUID,
		Period:   domain.Period{Year: 2026, Month: time.October},
		Amount:   decimal.NewFromInt(5000),
		State:    domain.FeeStateGenerated,
		DueDate:  time.Date(2026, time.October, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("InsertFee returned error: %v", err)
	}
	if inserted {
		t.Fatal("expected no insert when the fee already exists")
	}
	expectationsMet(t, pool)
}

func TestFeeStateUpdates_ReportLostRace(t *testing.T) {
	tests := []struct {
		name   string
		run    func(repo *Repository) (bool, error)
		expect func(pool pgxmock.PgxPoolIface)
	}{
		{
			name: "mark paid",
			run: func(repo *Repository) (bool, error) {
				return repo.MarkFeePaid(context.Background(), feeUUID, domain.FeeStateOverdue, paymentUUID)
			},
			expect: func(pool pgxmock.PgxPoolIface) {
				pool.ExpectExec("UPDATE fees").
					WithArgs(feeUUID, "OVERDUE", paymentUUID).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
		},
		{
			name: "promote overdue",
			run: func(repo *Repository) (bool, error) {
				return repo.UpdateFeeState(context.Background(), feeUUID, domain.FeeStateGenerated, domain.FeeStateOverdue)
			},
			expect: func(pool pgxmock.PgxPoolIface) {
				pool.ExpectExec("UPDATE fees").
					WithArgs(feeUUID, "GENERATED", "OVERDUE").
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, pool := newMockRepository(t)
			tt.expect(pool)

			ok, err := tt.run(repo)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok {
				t.Fatal("expected false when no row matched the expected state")
			}
			expectationsMet(t, pool)
		})
	}
}

func TestGetMemberByID_Missing(t *testing.T) {
	repo, pool := newMockRepository(t)
	pool.ExpectQuery("FROM members m WHERE m.id").WithArgs(memberUUID).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetMemberByID(context.Background(), memberUUID)
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) || notFound.ID != memberUUID {
		t.Fatalf("expected member not found, got %v", err)
	}
	expectationsMet(t, pool)
}

func TestMalformedIDsNeverReachPostgres(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T, repo *Repository)
	}{
		{
			name: "member lookup",
			check: func(t *testing.T, repo *Repository) {
				_, err := repo.GetMemberByID(context.Background(), "abc")
				if !errors.Is(err, domain.ErrNotFound) {
					t.Fatalf("expected not found, got %v", err)
				}
			},
		},
		{
			name: "sport lookup",
			check: func(t *testing.T, repo *Repository) {
				_, err := repo.GetSportByID(context.Background(), "chess")
				if !errors.Is(err, domain.ErrNotFound) {
					t.Fatalf("expected not found, got %v", err)
				}
			},
		},
		{
			name: "fees by id",
			check: func(t *testing.T, repo *Repository) {
				fees, err := repo.GetFeesByIDs(context.Background(), []string{"xyz", "42"})
				if err != nil || len(fees) != 0 {
					t.Fatalf("expected no fees, got %v, %v", fees, err)
				}
			},
		},
		{
			name: "fee listing by member",
			check: func(t *testing.T, repo *Repository) {
				fees, err := repo.ListFees(context.Background(), domain.FeeFilter{MemberID: "abc"})
				if err != nil || len(fees) != 0 {
					t.Fatalf("expected no fees, got %v, %v", fees, err)
				}
			},
		},
		{
			name: "fee listing by sport",
			check: func(t *testing.T, repo *Repository) {
				fees, err := repo.ListFees(context.Background(), domain.FeeFilter{SportID: "futbol"})
				if err != nil || len(fees) != 0 {
					t.Fatalf("expected no fees, got %v, %v", fees, err)
				}
			},
		},
		{
			name: "payment listing by member",
			check: func(t *testing.T, repo *Repository) {
				payments, err := repo.ListPayments(context.Background(), domain.PaymentFilter{MemberID: "abc"})
				if err != nil || len(payments) != 0 {
					t.Fatalf("expected no payments, got %v, %v", payments, err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, pool := newMockRepository(t)
			tt.check(t, repo)
			expectationsMet(t, pool)
		})
	}
}

func TestGetFeesByIDs_QueriesOnlyWellFormedIDs(t *testing.T) {
	repo, pool := newMockRepository(t)
	pool.ExpectQuery("FROM fees f WHERE f.id = ANY").
		WithArgs([]string{feeUUID}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	fees, err := repo.GetFeesByIDs(context.Background(), []string{"xyz", feeUUID})
	if err != nil {
		t.Fatalf("GetFeesByIDs returned error: %v", err)
	}
	if len(fees) != 0 {
		t.Fatalf("expected no fees, got %d", len(fees))
	}
	expectationsMet(t, pool)
}

func TestInsertMember_MapsPostgresErrors(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		wantField string
	}{
		{name: "duplicate document", code: "23505", wantField: "document_number"},
		{name: "malformed value", code: "22P02", wantField: "member"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, pool := newMockRepository(t)
			pool.ExpectQuery("INSERT INTO members").WillReturnError(&pgconn.PgError{Code: tt.code})

			err := repo.InsertMember(context.Background(), &domain.Member{
				ID:             memberUUID,
				FirstName:      "Ana",
				LastName:       "Gomez",
				DocumentNumber: "30111222",
				Category:       domain.CategorySocio,
				Active:         true,
			})
			var verr *domain.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.wantField {
				t.Fatalf("expected validation error on %s, got %v", tt.wantField, err)
			}
			expectationsMet(t, pool)
		})
	}
}

func TestInsertMember_OtherErrorsAreWrapped(t *testing.T) {
	repo, pool := newMockRepository(t)
	boom := errors.New("connection reset")
	pool.ExpectQuery("INSERT INTO members").WillReturnError(boom)

	err := repo.InsertMember(context.Background(), &domain.Member{ID: memberUUID, DocumentNumber: "1", Category: domain.CategorySocio})
	if !errors.Is(err, boom) || errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
	expectationsMet(t, pool)
}

func TestWithTx_RollsBackWhenCallbackFails(t *testing.T) {
	repo, pool := newMockRepository(t)
	pool.ExpectBegin()
	pool.ExpectExec("UPDATE fees").
		WithArgs(feeUUID, "GENERATED", "OVERDUE").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectRollback()

	failure := errors.New("payment rejected")
	err := repo.WithTx(context.Background(), func(q Queries) error {
		if _, err := q.UpdateFeeState(context.Background(), feeUUID, domain.FeeStateGenerated, domain.FeeStateOverdue); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected callback error, got %v", err)
	}
	expectationsMet(t, pool)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	repo, pool := newMockRepository(t)
	pool.ExpectBegin()
	pool.ExpectExec("UPDATE fees").
		WithArgs(feeUUID, "OVERDUE", paymentUUID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectCommit()

	err := repo.WithTx(context.Background(), func(q Queries) error {
		ok, err := q.MarkFeePaid(context.Background(), feeUUID, domain.FeeStateOverdue, paymentUUID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("fee not settled")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx returned error: %v", err)
	}
	expectationsMet(t, pool)
}
