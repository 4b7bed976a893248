// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters the orchestration layer reports into. All are
// registered with the default Prometheus registry and served at /metrics.
type Metrics struct {
	// Generations counts completed generation attempts.
	// Labels: backend, outcome (success|timeout|rate_limited|invalid_response|unreachable)
	Generations *prometheus.CounterVec

	// BusyRejections counts Handle calls rejected because a generation
	// was already in flight for the session.
	BusyRejections prometheus.Counter

	// NoBackendAvailable counts dispatch failures where every candidate
	// backend was unhealthy. A rising rate means infrastructure trouble,
	// not caller error.
	NoBackendAvailable prometheus.Counter

	// SessionsSwept counts sessions removed by the expiry sweeper.
	SessionsSwept prometheus.Counter
}

// New creates and registers all metrics. Call once at startup.
func New() *Metrics {
	return &Metrics{
		Generations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenthub_generations_total",
				Help: "Generation attempts by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		BusyRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agenthub_busy_rejections_total",
			Help: "Handle calls rejected because the session was already generating",
		}),
		NoBackendAvailable: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agenthub_no_backend_available_total",
			Help: "Dispatch attempts that found no healthy backend",
		}),
		SessionsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agenthub_sessions_swept_total",
			Help: "Sessions removed by the expiry sweeper",
		}),
	}
}

// GenerationResult records one generation attempt; nil-safe.
func (m *Metrics) GenerationResult(backendID, outcome string) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(backendID, outcome).Inc()
}

// BusyRejected records a Busy rejection; nil-safe.
func (m *Metrics) BusyRejected() {
	if m == nil {
		return
	}
	m.BusyRejections.Inc()
}

// NoBackend records a dispatch failure; nil-safe.
func (m *Metrics) NoBackend() {
	if m == nil {
		return
	}
	m.NoBackendAvailable.Inc()
}

// Swept records sessions removed by a sweep; nil-safe.
func (m *Metrics) Swept(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.SessionsSwept.Add(float64(count))
}
