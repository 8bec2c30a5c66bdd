package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Recorders(t *testing.T) {
	m := NewPrometheusMetricsWith(prometheus.NewRegistry())

	m.RecordTransition("approve", "ready", "approved")
	m.RecordOperation("approve", 10*time.Millisecond, "")
	m.RecordOperation("approve", 10*time.Millisecond, "state_conflict")
	m.ObserveProof(true, 0)
	m.ObserveProof(false, 20*time.Millisecond)
	m.ObserveProof(false, 20*time.Millisecond)
	m.ObserveSchedulerRun("ok", 3, 1)
	m.SetHealthCheckStatus("database", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateTransitions.WithLabelValues("approve", "ready", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationErrors.WithLabelValues("approve", "state_conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProofGenerations.WithLabelValues("cache")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProofGenerations.WithLabelValues("render")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SchedulerFired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchedulerFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthCheckStatus.WithLabelValues("database")))
}

func TestMetrics_InFlight(t *testing.T) {
	m := NewPrometheusMetricsWith(prometheus.NewRegistry())

	m.IncRequestsInFlight("GET", "/api/v1/campaigns")
	m.IncRequestsInFlight("GET", "/api/v1/campaigns")
	m.DecRequestsInFlight("GET", "/api/v1/campaigns")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsInFlight.WithLabelValues("GET", "/api/v1/campaigns")))
}
