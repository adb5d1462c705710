// Package observability holds the Prometheus metrics for the API and the
// import and reconciliation pipelines.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// ImportsTotal counts statement upload attempts by file type and
	// outcome: ok, empty, rejected or failed.
	ImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statement_imports_total",
		Help: "Statement import attempts by file type and result.",
	}, []string{"file_type", "result"})

	TransactionsImported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statement_transactions_imported_total",
		Help: "Transactions persisted by statement imports.",
	})

	TransactionsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statement_transactions_duplicate_total",
		Help: "Transactions skipped as duplicates during imports.",
	})

	AutoMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_auto_matches_total",
		Help: "Automatic reconciliation matches by strategy.",
	}, []string{"strategy"})

	ManualMatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_manual_matches_total",
		Help: "Manual reconciliation matches.",
	})
)

// Metrics records request counts and latency per chi route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
