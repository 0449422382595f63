/**
 * @description
 * Core business logic for club billing: fee generation, overdue promotion,
 * payment allocation, member registration and reporting.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clublibertad/billing-service/internal/domain"
	"github.com/clublibertad/billing-service/internal/store"
)

// DefaultDueDay is the day of the month fees fall due when none is configured.
const DefaultDueDay = 10

// Repository defines the database operations the service needs.
type Repository interface {
	store.Queries
	WithTx(ctx context.Context, fn func(q store.Queries) error) error
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// RefreshGate coalesces concurrent billing refreshes.
type RefreshGate interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// MetricsRecorder receives billing counters.
type MetricsRecorder interface {
	FeesGenerated(n int)
	FeesOverdue(n int)
	PaymentRegistered(method domain.PaymentMethod, total decimal.Decimal)
	RefreshSkipped()
	RefreshDuration(d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) FeesGenerated(int)                                       {}
func (noopMetrics) FeesOverdue(int)                                         {}
func (noopMetrics) PaymentRegistered(domain.PaymentMethod, decimal.Decimal) {}
func (noopMetrics) RefreshSkipped()                                         {}
func (noopMetrics) RefreshDuration(time.Duration)                           {}

// Service provides the business logic for club billing.
type Service struct {
	repo      Repository
	publisher EventPublisher
	gate      RefreshGate
	gateTTL   time.Duration
	metrics   MetricsRecorder
	logger    *slog.Logger
	loc       *time.Location
	dueDay    int
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithDueDay sets the day of the month fees fall due.
func WithDueDay(day int) Option {
	return func(s *Service) {
		if day >= 1 && day <= 31 {
			s.dueDay = day
		}
	}
}

// WithRefreshGate enables refresh coalescing through gate.
func WithRefreshGate(gate RefreshGate, ttl time.Duration) Option {
	return func(s *Service) {
		s.gate = gate
		s.gateTTL = ttl
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new billing service.
func NewService(repo Repository, publisher EventPublisher, timezone string, opts ...Option) Service {
	s := Service{
		repo:      repo,
		publisher: publisher,
		gateTTL:   30 * time.Second,
		metrics:   noopMetrics{},
		logger:    slog.Default(),
		dueDay:    DefaultDueDay,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		s.logger.Warn("invalid timezone, defaulting to UTC", "timezone", timezone, "error", err)
		loc = time.UTC
	}
	s.loc = loc

	return s
}

// Location returns the business time zone.
func (s Service) Location() *time.Location {
	return s.loc
}

// CurrentPeriod is the billing period containing now in the business time zone.
func (s Service) CurrentPeriod() domain.Period {
	return domain.PeriodOf(s.now().In(s.loc))
}

// Today is the current civil date in the business time zone.
func (s Service) Today() time.Time {
	return domain.CivilDate(s.now(), s.loc)
}
