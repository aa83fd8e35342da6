package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation. All methods are
// safe on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	inFlight        prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	dbQueryDuration *prometheus.HistogramVec

	submitted      prometheus.Counter
	transitions    *prometheus.CounterVec
	reports        *prometheus.CounterVec
	orphanedProofs *prometheus.CounterVec
}

// NewMetricsService registers core and portal collectors on a private registry.
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

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Requests currently being served",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	submitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "maintenance_requests_submitted_total",
		Help: "Maintenance requests accepted",
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_request_transitions_total",
		Help: "Status transitions applied by target status",
	}, []string{"status"})

	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_reports_generated_total",
		Help: "Reports rendered by format",
	}, []string{"format"})

	orphanedProofs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_orphaned_proofs_total",
		Help: "Proof objects left without a request, by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, inFlight, cacheLookups, cacheLatency, dbQueryDuration,
		submitted, transitions, reports, orphanedProofs, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		inFlight:        inFlight,
		cacheLookups:    cacheLookups,
		cacheLatency:    cacheLatency,
		dbQueryDuration: dbQueryDuration,
		submitted:       submitted,
		transitions:     transitions,
		reports:         reports,
		orphanedProofs:  orphanedProofs,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// TrackInFlight increments the in-flight gauge and returns the matching
// decrement.
func (m *MetricsService) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RequestSubmitted counts an accepted request.
func (m *MetricsService) RequestSubmitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

// RequestTransitioned counts an applied status transition.
func (m *MetricsService) RequestTransitioned(status models.RequestStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(status)).Inc()
}

// ReportGenerated counts a rendered report.
func (m *MetricsService) ReportGenerated(format models.ReportFormat) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(string(format)).Inc()
}

// OrphanedProof counts proof objects found without a request, by outcome
// (deleted, queued, failed).
func (m *MetricsService) OrphanedProof(outcome string) {
	if m == nil {
		return
	}
	m.orphanedProofs.WithLabelValues(outcome).Inc()
}
