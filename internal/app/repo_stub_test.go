package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clublibertad/billing-service/internal/domain"
	"github.com/clublibertad/billing-service/internal/store"
)

// memRepo is an in-memory Repository. WithTx snapshots state and restores it
// when the callback fails, which is enough to observe atomicity.
type memRepo struct {
	mu         sync.Mutex
	members    map[string]domain.Member
	sports     map[string]domain.Sport
	promotions map[string]domain.Promotion
	fees       map[string]domain.Fee
	payments   map[string]domain.Payment
	registry   map[string]domain.RegistryRecord

	listFeesErr    error
	beforeMarkPaid func(r *memRepo, feeID string)
}

func newMemRepo() *memRepo {
	return &memRepo{
		members:    make(map[string]domain.Member),
		sports:     make(map[string]domain.Sport),
		promotions: make(map[string]domain.Promotion),
		fees:       make(map[string]domain.Fee),
		payments:   make(map[string]domain.Payment),
		registry:   make(map[string]domain.RegistryRecord),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (r *memRepo) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	r.mu.Lock()
	members, fees, payments, registry := cloneMap(r.members), cloneMap(r.fees), cloneMap(r.payments), cloneMap(r.registry)
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.members, r.fees, r.payments, r.registry = members, fees, payments, registry
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) sortedMembers(activeOnly bool) []domain.Member {
	var out []domain.Member
	for _, m := range r.members {
		if activeOnly && !m.Active {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memRepo) GetActiveMembers(ctx context.Context) ([]domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedMembers(true), nil
}

func (r *memRepo) ListMembers(ctx context.Context) ([]domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedMembers(false), nil
}

func (r *memRepo) GetMemberByID(ctx context.Context, memberID string) (*domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "member", ID: memberID}
	}
	return &m, nil
}

func (r *memRepo) InsertMember(ctx context.Context, member *domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.DocumentNumber == member.DocumentNumber {
			return &domain.ValidationError{Field: "document_number", Reason: "a member with this document number already exists"}
		}
	}
	r.members[member.ID] = *member
	return nil
}

func (r *memRepo) GetSports(ctx context.Context) ([]domain.Sport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Sport
	for _, s := range r.sports {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) GetSportByID(ctx context.Context, sportID string) (*domain.Sport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sports[sportID]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "sport", ID: sportID}
	}
	return &s, nil
}

func (r *memRepo) promotionList(activeOnly bool) []domain.Promotion {
	var out []domain.Promotion
	for _, p := range r.promotions {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memRepo) GetActivePromotions(ctx context.Context) ([]domain.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.promotionList(true), nil
}

func (r *memRepo) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.promotionList(false), nil
}

func (r *memRepo) FindFee(ctx context.Context, memberID, sportID string, period domain.Period) (*domain.Fee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.fees {
		if f.MemberID == memberID && f.SportID == sportID && f.Period == period {
			return &f, nil
		}
	}
	return nil, nil
}

func (r *memRepo) InsertFee(ctx context.Context, fee *domain.Fee) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.fees {
		if f.MemberID == fee.MemberID && f.SportID == fee.SportID && f.Period == fee.Period {
			return false, nil
		}
	}
	r.fees[fee.ID] = *fee
	return true, nil
}

func (r *memRepo) UpdateFeeState(ctx context.Context, feeID string, expected, next domain.FeeState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fees[feeID]
	if !ok || f.State != expected {
		return false, nil
	}
	f.State = next
	r.fees[feeID] = f
	return true, nil
}

func (r *memRepo) MarkFeePaid(ctx context.Context, feeID string, expected domain.FeeState, paymentID string) (bool, error) {
	if r.beforeMarkPaid != nil {
		r.beforeMarkPaid(r, feeID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fees[feeID]
	if !ok || f.State != expected || f.PaymentID != nil {
		return false, nil
	}
	f.State = domain.FeeStatePaid
	f.PaymentID = &paymentID
	r.fees[feeID] = f
	return true, nil
}

func (r *memRepo) GetFeesByIDs(ctx context.Context, feeIDs []string) ([]domain.Fee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Fee
	for _, id := range feeIDs {
		if f, ok := r.fees[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memRepo) ListFees(ctx context.Context, filter domain.FeeFilter) ([]domain.Fee, error) {
	if r.listFeesErr != nil {
		return nil, r.listFeesErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Fee
	for _, f := range r.fees {
		if filter.MemberID != "" && f.MemberID != filter.MemberID {
			continue
		}
		if filter.SportID != "" && f.SportID != filter.SportID {
			continue
		}
		if !filter.Period.IsZero() && f.Period != filter.Period {
			continue
		}
		if len(filter.States) > 0 {
			match := false
			for _, s := range filter.States {
				if f.State == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if !filter.DueBefore.IsZero() && !f.DueDate.Before(filter.DueBefore) {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[payment.ID] = *payment
	return nil
}

func (r *memRepo) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Payment
	for _, p := range r.payments {
		if filter.MemberID != "" && p.MemberID != filter.MemberID {
			continue
		}
		if !filter.From.IsZero() && p.PaymentDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && p.PaymentDate.After(filter.To) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) FindRegistryRecord(ctx context.Context, documentNumber string) (*domain.RegistryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.registry[documentNumber]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *memRepo) InsertRegistryRecord(ctx context.Context, record *domain.RegistryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registry[record.DocumentNumber] = *record
	return nil
}

func (r *memRepo) fee(id string) domain.Fee {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fees[id]
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *publisherStub) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.routingKey == routingKey {
			n++
		}
	}
	return n
}

type gateStub struct {
	held       map[string]bool
	acquireErr error
	released   []string
}

func (g *gateStub) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if g.acquireErr != nil {
		return false, g.acquireErr
	}
	if g.held == nil {
		g.held = make(map[string]bool)
	}
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func (g *gateStub) Release(ctx context.Context, key string) error {
	delete(g.held, key)
	g.released = append(g.released, key)
	return nil
}

type metricsStub struct {
	generated int
	overdue   int
	payments  int
	skipped   int
}

func (m *metricsStub) FeesGenerated(n int)                                     { m.generated += n }
func (m *metricsStub) FeesOverdue(n int)                                       { m.overdue += n }
func (m *metricsStub) PaymentRegistered(domain.PaymentMethod, decimal.Decimal) { m.payments++ }
func (m *metricsStub) RefreshSkipped()                                         { m.skipped++ }
func (m *metricsStub) RefreshDuration(time.Duration)                           {}

var errBoom = errors.New("boom")

// testNow is 2026-10-17 12:00 UTC.
var testNow = time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(repo Repository, publisher EventPublisher, opts ...Option) Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := []Option{WithLogger(logger), WithClock(fixedClock(testNow))}
	return NewService(repo, publisher, "UTC", append(base, opts...)...)
}

// seedClub adds two sports, two active members and one inactive member.
func seedClub(r *memRepo) {
	r.sports["s1"] = domain.Sport{ID: "s1", Name: "Futbol", InstructorFee: dec("3000"), InsuranceFee: dec("500"), SocialFee: dec("1500")}
	r.sports["s2"] = domain.Sport{ID: "s2", Name: "Basquet", InstructorFee: dec("4000"), InsuranceFee: dec("1000"), SocialFee: dec("2000")}
	r.members["m1"] = domain.Member{ID: "m1", FirstName: "Ana", LastName: "Gomez", DocumentNumber: "30111222", Category: domain.CategorySocio, Active: true, SportIDs: []string{"s1", "s2"}}
	r.members["m2"] = domain.Member{ID: "m2", FirstName: "Luis", LastName: "Perez", DocumentNumber: "28999000", Category: domain.CategorySocio, Active: true, SportIDs: []string{"s1"}}
	r.members["m3"] = domain.Member{ID: "m3", FirstName: "Old", LastName: "Timer", DocumentNumber: "10000000", Category: domain.CategorySocio, Active: false, SportIDs: []string{"s1"}}
}

func addFee(r *memRepo, id, memberID string, amount string, state domain.FeeState, due time.Time) {
	fee := domain.Fee{
		ID:       id,
		MemberID: memberID,
		SportID:  "s1",
		Period:   domain.PeriodOf(due),
		Amount:   dec(amount),
		State:    state,
		DueDate:  due,
		Concept:  "Futbol",
	}
	if state == domain.FeeStatePaid {
		pid := "pay-" + id
		fee.PaymentID = &pid
	}
	r.fees[id] = fee
}
