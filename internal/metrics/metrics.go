package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "lease_billing"

// Metrics groups the collectors of the API and the scheduler
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	paymentsApplied   *prometheus.CounterVec
	amountCollected   *prometheus.CounterVec
	paymentsRejected  *prometheus.CounterVec
	loansOpened       *prometheus.CounterVec
	loansClosed       prometheus.Counter
	notificationsSent *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"method", "route"}),
		paymentsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "payments_applied_total",
			Help:      "Installments settled, by payment method",
		}, []string{"method"}),
		amountCollected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "amount_collected_total",
			Help:      "Money collected by payment method, in currency units",
		}, []string{"method"}),
		paymentsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "payments_rejected_total",
			Help:      "Payment attempts rejected, by error code",
		}, []string{"code"}),
		loansOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "loans_opened_total",
			Help:      "Loans created, by payment frequency",
		}, []string{"frequency"}),
		loansClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "loans_closed_total",
			Help:      "Loans whose amount financed reached zero",
		}),
		notificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "sent_total",
			Help:      "Notifications by type and outcome (sent, duplicate, failed)",
		}, []string{"type", "outcome"}),
	}
}

func (m *Metrics) PaymentApplied(method string, amount decimal.Decimal, closedLoan bool) {
	m.paymentsApplied.WithLabelValues(method).Inc()
	m.amountCollected.WithLabelValues(method).Add(amount.InexactFloat64())
	if closedLoan {
		m.loansClosed.Inc()
	}
}

func (m *Metrics) PaymentRejected(code string) {
	if code == "" {
		code = "UNKNOWN"
	}
	m.paymentsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) LoanOpened(frequency string, closed bool) {
	m.loansOpened.WithLabelValues(frequency).Inc()
	if closed {
		m.loansClosed.Inc()
	}
}

func (m *Metrics) Notification(notificationType, outcome string) {
	m.notificationsSent.WithLabelValues(notificationType, outcome).Inc()
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies labelled with the mux route template
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
