package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLedgerCounters(t *testing.T) {
	m := New()

	m.PaymentApplied("card", decimal.RequireFromString("1000.50"), false)
	m.PaymentApplied("card", decimal.NewFromInt(500), true)
	m.PaymentRejected("ALREADY_PAID")
	m.PaymentRejected("")
	m.LoanOpened("monthly", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.paymentsApplied.WithLabelValues("card")))
	assert.Equal(t, 1500.5, testutil.ToFloat64(m.amountCollected.WithLabelValues("card")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentsRejected.WithLabelValues("UNKNOWN")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.loansClosed))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	m := New()

	router := mux.NewRouter()
	router.Use(m.Middleware)
	router.HandleFunc("/api/v1/loans/{loanId}/schedule", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", m.Handler())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/loans/123/schedule", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/loans/{loanId}/schedule", "200")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "lease_billing_http_requests_total")
}
