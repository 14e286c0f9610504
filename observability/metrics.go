package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InstructionMetrics records RPC instruction activity: request volume,
// error counts segmented by taxonomy code, and handler latency.
type InstructionMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	instructionOnce     sync.Once
	instructionRegistry *InstructionMetrics
)

// Instructions returns the lazily-initialised metrics registry used to record
// instruction handler activity.
func Instructions() *InstructionMetrics {
	instructionOnce.Do(func() {
		instructionRegistry = &InstructionMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "finvoice",
				Subsystem: "instruction",
				Name:      "requests_total",
				Help:      "Total JSON-RPC instruction requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "finvoice",
				Subsystem: "instruction",
				Name:      "errors_total",
				Help:      "Total JSON-RPC instruction errors segmented by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "finvoice",
				Subsystem: "instruction",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC instruction handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			instructionRegistry.requests,
			instructionRegistry.errors,
			instructionRegistry.latency,
		)
	})
	return instructionRegistry
}

// Observe records the outcome of a single instruction handler invocation.
func (m *InstructionMetrics) Observe(method string, started time.Time, errCode string) {
	if m == nil {
		return
	}
	outcome := "ok"
	if errCode != "" {
		outcome = "error"
		m.errors.WithLabelValues(method, errCode).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(time.Since(started).Seconds())
}
