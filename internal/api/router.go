/**
 * @description
 * HTTP router setup for the billing service using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers billing routes. A nil
// metricsHandler leaves /metrics unregistered.
func NewRouter(h *Handler, internalKey string, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Billing service is healthy"))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/internal/billing", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Post("/refresh", h.handleRefresh)
		r.Post("/overdue/run", h.handleRunOverdue)
		r.Post("/fees/generate", h.handleGenerateFees)
	})

	r.Route("/billing", func(r chi.Router) {
		r.Post("/refresh", h.handleRefresh)
		r.Get("/fees", h.handleListFees)
		r.Get("/summary", h.handleSummary)
		r.Post("/discounts/preview", h.handlePreviewDiscount)
		r.Post("/payments", h.handleRegisterPayment)
		r.Get("/payments", h.handleListPayments)
	})

	r.Route("/members", func(r chi.Router) {
		r.Post("/", h.handleCreateMember)
		r.Post("/use-existing", h.handleCreateMemberUsingExisting)
	})

	return r
}
