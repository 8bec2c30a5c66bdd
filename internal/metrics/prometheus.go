package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all the Prometheus metrics for our service
type Metrics struct {
	// Request counters
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Business logic metrics
	StateTransitions   *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	OperationErrors    *prometheus.CounterVec
	ProofGenerations   *prometheus.CounterVec
	ProofRenderSeconds prometheus.Histogram
	SchedulerRuns      *prometheus.CounterVec
	SchedulerFired     prometheus.Counter
	SchedulerFailures  prometheus.Counter
	DatabaseQueries    *prometheus.CounterVec
	DatabaseErrors     *prometheus.CounterVec

	// Health check metrics
	HealthCheckStatus *prometheus.GaugeVec
}

// NewPrometheusMetrics creates and registers all metrics with the default registerer.
func NewPrometheusMetrics() *Metrics {
	return NewPrometheusMetricsWith(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsWith registers all metrics with reg; tests pass a fresh registry.
func NewPrometheusMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	metrics := &Metrics{
		// HTTP request metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailproof_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailproof_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mailproof_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
			[]string{"method", "endpoint"},
		),

		// Business metrics
		StateTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailproof_campaign_transitions_total",
				Help: "Total number of campaign status transitions",
			},
			[]string{"operation", "from", "to"},
		),

		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailproof_operation_duration_seconds",
				Help:    "Campaign operation duration in seconds",
				Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),

		OperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailproof_operation_errors_total",
				Help: "Total number of failed campaign operations by error kind",
			},
			[]string{"operation", "kind"},
		),

		ProofGenerations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailproof_proof_generations_total",
				Help: "Proof requests by result source (cache or render)",
			},
			[]string{"source"},
		),

		ProofRenderSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailproof_proof_render_duration_seconds",
				Help:    "Time spent rendering and uploading a proof",
				Buckets: prometheus.DefBuckets,
			},
		),

		SchedulerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailproof_scheduler_runs_total",
				Help: "Scheduler ticks by outcome",
			},
			[]string{"outcome"},
		),

		SchedulerFired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailproof_scheduler_campaigns_sent_total",
				Help: "Campaigns marked sent by the scheduler",
			},
		),

		SchedulerFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailproof_scheduler_failures_total",
				Help: "Campaigns the scheduler failed to mark sent",
			},
		),

		DatabaseQueries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailproof_database_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "table"},
		),

		DatabaseErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailproof_database_errors_total",
				Help: "Total number of database errors",
			},
			[]string{"operation", "error_type"},
		),

		// Health check metrics
		HealthCheckStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mailproof_health_check_status",
				Help: "Health check status (1 = healthy, 0 = unhealthy)",
			},
			[]string{"check_type"},
		),
	}

	return metrics
}

// RecordHTTPRequest records an HTTP request with its duration and status
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordTransition records a campaign status change
func (m *Metrics) RecordTransition(operation, from, to string) {
	m.StateTransitions.WithLabelValues(operation, from, to).Inc()
}

// RecordOperation records the duration of a service operation and, when it failed,
// the error kind.
func (m *Metrics) RecordOperation(operation string, duration time.Duration, errKind string) {
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if errKind != "" {
		m.OperationErrors.WithLabelValues(operation, errKind).Inc()
	}
}

// ObserveProof records where a proof came from and, for renders, how long it took.
func (m *Metrics) ObserveProof(cached bool, duration time.Duration) {
	if cached {
		m.ProofGenerations.WithLabelValues("cache").Inc()
		return
	}
	m.ProofGenerations.WithLabelValues("render").Inc()
	m.ProofRenderSeconds.Observe(duration.Seconds())
}

// ObserveSchedulerRun records one scheduler tick.
func (m *Metrics) ObserveSchedulerRun(outcome string, fired, failed int) {
	m.SchedulerRuns.WithLabelValues(outcome).Inc()
	m.SchedulerFired.Add(float64(fired))
	m.SchedulerFailures.Add(float64(failed))
}

// RecordDatabaseQuery records a database query
func (m *Metrics) RecordDatabaseQuery(operation, table string) {
	m.DatabaseQueries.WithLabelValues(operation, table).Inc()
}

// RecordDatabaseError records a database error
func (m *Metrics) RecordDatabaseError(operation, errorType string) {
	m.DatabaseErrors.WithLabelValues(operation, errorType).Inc()
}

// SetHealthCheckStatus sets the health check status
func (m *Metrics) SetHealthCheckStatus(checkType string, healthy bool) {
	status := 0.0
	if healthy {
		status = 1.0
	}
	m.HealthCheckStatus.WithLabelValues(checkType).Set(status)
}

// IncRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncRequestsInFlight(method, endpoint string) {
	m.HTTPRequestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// DecRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecRequestsInFlight(method, endpoint string) {
	m.HTTPRequestsInFlight.WithLabelValues(method, endpoint).Dec()
}
