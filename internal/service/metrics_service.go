package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transition outcomes recorded on the domain counters.
const (
	OutcomeApplied   = "applied"
	OutcomeNoop      = "noop"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	transitionLabel  = "transition"
	outcomeLabel     = "outcome"
	operationLabel   = "operation"
	defaultNamespace = "academic"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	handler                 http.Handler
	requestDuration         *prometheus.HistogramVec
	requestTotal            *prometheus.CounterVec
	registrationTransitions *prometheus.CounterVec
	gradeTransitions        *prometheus.CounterVec
	dbRetries               *prometheus.CounterVec
	cacheLatency            prometheus.Observer
	cacheHits               prometheus.Counter
	cacheMisses             prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
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

	registrationTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: defaultNamespace,
		Name:      "registration_transitions_total",
		Help:      "Registration state transitions by outcome",
	}, []string{transitionLabel, outcomeLabel})

	gradeTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: defaultNamespace,
		Name:      "grade_transitions_total",
		Help:      "Grade records moved by pipeline transitions",
	}, []string{transitionLabel})

	dbRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: defaultNamespace,
		Name:      "db_retries_total",
		Help:      "Data store operations retried after a transient failure",
	}, []string{operationLabel})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, registrationTransitions, gradeTransitions,
		dbRetries, cacheLatency, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		handler:                 promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:         requestDuration,
		requestTotal:            requestTotal,
		registrationTransitions: registrationTransitions,
		gradeTransitions:        gradeTransitions,
		dbRetries:               dbRetries,
		cacheLatency:            cacheLatency,
		cacheHits:               cacheHits,
		cacheMisses:             cacheMisses,
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
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveRegistrationTransition counts one registration transition attempt.
func (m *MetricsService) ObserveRegistrationTransition(transition, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.registrationTransitions.WithLabelValues(transition, outcome).Add(float64(count))
}

// ObserveGradeTransition counts grade records moved by a pipeline step.
func (m *MetricsService) ObserveGradeTransition(transition string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.gradeTransitions.WithLabelValues(transition).Add(float64(count))
}

// ObserveDBRetry counts a retried data store operation.
func (m *MetricsService) ObserveDBRetry(operation string) {
	if m == nil {
		return
	}
	m.dbRetries.WithLabelValues(operation).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
