/**
 * @description
 * HTTP handlers for the billing service.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clublibertad/billing-service/internal/app"
	"github.com/clublibertad/billing-service/internal/billing"
	"github.com/clublibertad/billing-service/internal/domain"
)

// BillingService is the application surface the handlers call.
type BillingService interface {
	RefreshBilling(ctx context.Context) (*app.RefreshResult, error)
	PromoteOverdueFees(ctx context.Context) (*app.OverdueResult, error)
	GenerateCurrentPeriodFees(ctx context.Context) (*app.FeeGenerationResult, error)
	LoadBillingScreen(ctx context.Context, q billing.FeeQuery) (*app.FeeListing, error)
	Summary(ctx context.Context) (*billing.Summary, error)
	PreviewPayment(ctx context.Context, memberID string, feeIDs, promotionIDs []string) (*app.PaymentQuote, error)
	RegisterPayment(ctx context.Context, req app.PaymentRequest) (*domain.Payment, error)
	ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)
	CreateMember(ctx context.Context, in app.MemberInput) (*domain.Member, error)
	CreateMemberUsingExisting(ctx context.Context, in app.MemberInput) (*domain.Member, error)
}

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service BillingService
	logger  *slog.Logger
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service BillingService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type previewRequest struct {
	MemberID     string   `json:"member_id"`
	FeeIDs       []string `json:"fee_ids"`
	PromotionIDs []string `json:"promotion_ids"`
}

type paymentRequest struct {
	MemberID     string   `json:"member_id"`
	FeeIDs       []string `json:"fee_ids"`
	Method       string   `json:"method"`
	PromotionIDs []string `json:"promotion_ids"`
	Note         string   `json:"note"`
	PaymentDate  string   `json:"payment_date"`
}

type memberRequest struct {
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	DocumentNumber string   `json:"document_number"`
	BirthDate      string   `json:"birth_date"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	Category       string   `json:"category"`
	GuardianID     *string  `json:"guardian_id"`
	SportIDs       []string `json:"sport_ids"`
	PromotionIDs   []string `json:"promotion_ids"`
}

type errorResponse struct {
	Error     string                 `json:"error"`
	Field     string                 `json:"field,omitempty"`
	Candidate *domain.RegistryRecord `json:"candidate,omitempty"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RefreshBilling(r.Context())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRunOverdue(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.PromoteOverdueFees(r.Context())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGenerateFees(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GenerateCurrentPeriodFees(r.Context())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListFees(w http.ResponseWriter, r *http.Request) {
	query, err := parseFeeQuery(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	listing, err := h.service.LoadBillingScreen(r.Context(), query)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *Handler) handlePreviewDiscount(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, &domain.ValidationError{Reason: "invalid request body"})
		return
	}

	quote, err := h.service.PreviewPayment(r.Context(), req.MemberID, req.FeeIDs, req.PromotionIDs)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, quote)
}

func (h *Handler) handleRegisterPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, &domain.ValidationError{Reason: "invalid request body"})
		return
	}

	paymentDate, err := parseDate("payment_date", req.PaymentDate)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	payment, err := h.service.RegisterPayment(r.Context(), app.PaymentRequest{
		MemberID:     req.MemberID,
		FeeIDs:       req.FeeIDs,
		Method:       domain.PaymentMethod(req.Method),
		PromotionIDs: req.PromotionIDs,
		Note:         strings.TrimSpace(req.Note),
		PaymentDate:  paymentDate,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, payment)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	to, err := parseDate("to", q.Get("to"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	payments, err := h.service.ListPayments(r.Context(), domain.PaymentFilter{
		MemberID: q.Get("member_id"),
		From:     from,
		To:       to,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	respondWithJSON(w, http.StatusOK, payments)
}

func (h *Handler) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	h.createMember(w, r, h.service.CreateMember)
}

func (h *Handler) handleCreateMemberUsingExisting(w http.ResponseWriter, r *http.Request) {
	h.createMember(w, r, h.service.CreateMemberUsingExisting)
}

func (h *Handler) createMember(w http.ResponseWriter, r *http.Request, create func(context.Context, app.MemberInput) (*domain.Member, error)) {
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, &domain.ValidationError{Reason: "invalid request body"})
		return
	}

	in := app.MemberInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		DocumentNumber: req.DocumentNumber,
		Email:          req.Email,
		Phone:          req.Phone,
		Category:       domain.Category(req.Category),
		GuardianID:     req.GuardianID,
		SportIDs:       req.SportIDs,
		PromotionIDs:   req.PromotionIDs,
	}
	if req.BirthDate != "" {
		birthDate, err := parseDate("birth_date", req.BirthDate)
		if err != nil {
			h.respondWithError(w, err)
			return
		}
		in.BirthDate = &birthDate
	}

	member, err := create(r.Context(), in)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, member)
}

func parseFeeQuery(r *http.Request) (billing.FeeQuery, error) {
	q := r.URL.Query()
	query := billing.FeeQuery{
		MemberID: strings.TrimSpace(q.Get("member_id")),
		SportID:  strings.TrimSpace(q.Get("sport_id")),
		Text:     q.Get("q"),
	}

	if raw := strings.TrimSpace(q.Get("period")); raw != "" {
		period, err := domain.ParsePeriod(raw)
		if err != nil {
			return query, &domain.ValidationError{Field: "period", Reason: err.Error()}
		}
		query.Period = period
	}

	for _, raw := range q["state"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			state, err := domain.ParseFeeState(part)
			if err != nil {
				return query, err
			}
			query.States = append(query.States, state)
		}
	}

	return query, nil
}

// parseDate reads a YYYY-MM-DD civil date. An empty string yields the zero time.
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: field, Reason: "expected a date as YYYY-MM-DD"}
	}
	return t, nil
}

// respondWithError maps domain errors to HTTP status codes.
func (h *Handler) respondWithError(w http.ResponseWriter, err error) {
	var (
		dup        *domain.DuplicateCandidateError
		validation *domain.ValidationError
	)

	switch {
	case errors.As(err, &dup):
		respondWithJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Candidate: &dup.Candidate})
	case errors.As(err, &validation):
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: validation.Field})
	case errors.Is(err, domain.ErrNotFound):
		respondWithJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		respondWithJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("request failed", "error", err)
		respondWithJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
	}
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
