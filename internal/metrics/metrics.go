package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/clublibertad/billing-service/internal/domain"
)

// Metrics exposes Prometheus collectors that report billing activity.
type Metrics struct {
	registry        *prometheus.Registry
	feesGenerated   prometheus.Counter
	feesOverdue     prometheus.Counter
	payments        *prometheus.CounterVec
	collected       *prometheus.CounterVec
	refreshSkipped  prometheus.Counter
	refreshDuration prometheus.Histogram
}

// New constructs the billing collectors on a dedicated registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		feesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "club",
			Subsystem: "billing",
			Name:      "fees_generated_total",
			Help:      "Fees created by the monthly generation.",
		}),
		feesOverdue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "club",
			Subsystem: "billing",
			Name:      "fees_overdue_total",
			Help:      "Fees promoted from GENERATED to OVERDUE.",
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "club",
			Subsystem: "billing",
			Name:      "payments_total",
			Help:      "Payments registered, by method.",
		}, []string{"method"}),
		collected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "club",
			Subsystem: "billing",
			Name:      "payment_amount_total",
			Help:      "Sum of payment totals after discounts, by method.",
		}, []string{"method"}),
		refreshSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "club",
			Subsystem: "billing",
			Name:      "refresh_skipped_total",
			Help:      "Refreshes skipped because another instance held the period gate.",
		}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "club",
			Subsystem: "billing",
			Name:      "refresh_duration_seconds",
			Help:      "Time spent promoting overdue fees and generating the current period.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.feesGenerated,
		m.feesOverdue,
		m.payments,
		m.collected,
		m.refreshSkipped,
		m.refreshDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) FeesGenerated(n int) {
	if n > 0 {
		m.feesGenerated.Add(float64(n))
	}
}

func (m *Metrics) FeesOverdue(n int) {
	if n > 0 {
		m.feesOverdue.Add(float64(n))
	}
}

func (m *Metrics) PaymentRegistered(method domain.PaymentMethod, total decimal.Decimal) {
	m.payments.WithLabelValues(string(method)).Inc()
	m.collected.WithLabelValues(string(method)).Add(total.InexactFloat64())
}

func (m *Metrics) RefreshSkipped() {
	m.refreshSkipped.Inc()
}

func (m *Metrics) RefreshDuration(d time.Duration) {
	m.refreshDuration.Observe(d.Seconds())
}
