package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/clublibertad/billing-service/internal/app"
	"github.com/clublibertad/billing-service/internal/store"
	"github.com/clublibertad/billing-service/pkg/rabbitmq"
)

func TestMalformedIDsAreClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
		expect func(pool pgxmock.PgxPoolIface)
		want   int
	}{
		{
			name:   "payment for unknown member",
			method: http.MethodPost,
			target: "/billing/payments",
			body:   `{"member_id":"abc","fee_ids":["xyz"],"method":"CASH"}`,
			expect: func(pool pgxmock.PgxPoolIface) {
				pool.ExpectBegin()
				pool.ExpectRollback()
			},
			want: http.StatusNotFound,
		},
		{
			name:   "player with malformed guardian",
			method: http.MethodPost,
			target: "/members/",
			body:   `{"first_name":"Tomi","last_name":"Gomez","document_number":"55000111","category":"jugador","guardian_id":"abc"}`,
			expect: func(pool pgxmock.PgxPoolIface) {
				pool.ExpectBegin()
				pool.ExpectRollback()
			},
			want: http.StatusBadRequest,
		},
		{
			name:   "payments of malformed member",
			method: http.MethodGet,
			target: "/billing/payments?member_id=abc",
			expect: func(pool pgxmock.PgxPoolIface) {},
			want:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to build pgx mock: %v", err)
			}
			defer pool.Close()
			tt.expect(pool)

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			service := app.NewService(
				store.NewRepository(pool),
				&rabbitmq.EventProducerFallback{Logger: logger},
				"UTC",
				app.WithLogger(logger),
			)
			router := NewRouter(NewHandler(service, logger), "", nil)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body)))

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if err := pool.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}
