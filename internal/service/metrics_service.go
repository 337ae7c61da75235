package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	ledgerAppends   *prometheus.CounterVec
	backfillRuns    prometheus.Counter
	backfillEntries *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	ledgerAppends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conduct_ledger_appends_total",
		Help: "Total conduct ledger append attempts by outcome",
	}, []string{"outcome"})

	backfillRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "term_backfill_runs_total",
		Help: "Total term backfill executions",
	})

	backfillEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "term_backfill_entries_total",
		Help: "Total backfill-scanned ledger entries by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, ledgerAppends, backfillRuns, backfillEntries, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		ledgerAppends:   ledgerAppends,
		backfillRuns:    backfillRuns,
		backfillEntries: backfillEntries,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordLedgerAppend counts ledger append attempts by outcome
// ("ok", "conflict", "error").
func (m *MetricsService) RecordLedgerAppend(outcome string) {
	if m == nil {
		return
	}
	m.ledgerAppends.WithLabelValues(outcome).Inc()
}

// RecordBackfill counts one backfill run and its per-entry results.
func (m *MetricsService) RecordBackfill(classified, unmatched int) {
	if m == nil {
		return
	}
	m.backfillRuns.Inc()
	m.backfillEntries.WithLabelValues("classified").Add(float64(classified))
	m.backfillEntries.WithLabelValues("unmatched").Add(float64(unmatched))
}
