/**
 * @description
 * Data access layer for the billing service.
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clublibertad/billing-service/internal/domain"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries lists the operations available both on the pool and inside a
// transaction.
type Queries interface {
	GetActiveMembers(ctx context.Context) ([]domain.Member, error)
	GetMemberByID(ctx context.Context, memberID string) (*domain.Member, error)
	ListMembers(ctx context.Context) ([]domain.Member, error)
	InsertMember(ctx context.Context, member *domain.Member) error

	GetSports(ctx context.Context) ([]domain.Sport, error)
	GetSportByID(ctx context.Context, sportID string) (*domain.Sport, error)

	GetActivePromotions(ctx context.Context) ([]domain.Promotion, error)
	ListPromotions(ctx context.Context) ([]domain.Promotion, error)

	FindFee(ctx context.Context, memberID, sportID string, period domain.Period) (*domain.Fee, error)
	InsertFee(ctx context.Context, fee *domain.Fee) (bool, error)
	UpdateFeeState(ctx context.Context, feeID string, expected, next domain.FeeState) (bool, error)
	MarkFeePaid(ctx context.Context, feeID string, expected domain.FeeState, paymentID string) (bool, error)
	GetFeesByIDs(ctx context.Context, feeIDs []string) ([]domain.Fee, error)
	ListFees(ctx context.Context, filter domain.FeeFilter) ([]domain.Fee, error)

	InsertPayment(ctx context.Context, payment *domain.Payment) error
	ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)

	FindRegistryRecord(ctx context.Context, documentNumber string) (*domain.RegistryRecord, error)
	InsertRegistryRecord(ctx context.Context, record *domain.RegistryRecord) error
}

// TxDB is a DBTX that can also open transactions. *pgxpool.Pool satisfies it.
type TxDB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository handles database operations for billing.
type Repository struct {
	db   DBTX
	pool TxDB
}

// NewRepository creates a new repository on top of a pool.
func NewRepository(pool TxDB) *Repository {
	return &Repository{db: pool, pool: pool}
}

// WithTx runs fn inside a single database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (r *Repository) WithTx(ctx context.Context, fn func(q Queries) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Repository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return hasPgCode(err, uniqueViolation)
}

// isInvalidInput matches values Postgres cannot cast to the column type,
// such as a malformed uuid.
func isInvalidInput(err error) bool {
	return hasPgCode(err, invalidTextRepresentation)
}

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// validID reports whether id can be compared against a uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// validIDs keeps the ids that can be compared against a uuid column.
func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			out = append(out, id)
		}
	}
	return out
}
