package compiler

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexraputa/agent-skills-sub001/rules"
)

// Metrics records compilation statistics in a private Prometheus registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	documents *prometheus.CounterVec
	errors    *prometheus.CounterVec
	conflicts prometheus.Counter
	runs      *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewMetrics creates and registers the compiler metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rulec_documents_total",
			Help: "Rule documents processed, by outcome.",
		}, []string{"outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rulec_document_errors_total",
			Help: "Per-document errors, by kind.",
		}, []string{"kind"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rulec_conflicts_total",
			Help: "Conflicts recorded across runs.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rulec_runs_total",
			Help: "Compilation runs, by terminal state.",
		}, []string{"state"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rulec_compile_duration_seconds",
			Help:    "Wall time of compilation runs.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	m.registry.MustRegister(m.documents, m.errors, m.conflicts, m.runs, m.duration)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics to path for a node exporter
// textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) documentLoaded() {
	if m == nil {
		return
	}
	m.documents.WithLabelValues("loaded").Inc()
}

func (m *Metrics) documentFailed(kind rules.ErrorKind) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues("failed").Inc()
	m.errors.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) conflictsFound(n int) {
	if m == nil || n == 0 {
		return
	}
	m.conflicts.Add(float64(n))
}

func (m *Metrics) runFinished(state State, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(state)).Inc()
	m.duration.Observe(d.Seconds())
}
