// Package metrics provides Prometheus metrics for the ensemble pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(m *Manager) {
		m.runtime = true
	}
}

// Manager owns the pipeline collectors and satisfies weather.Recorder.
type Manager struct {
	namespace string
	registry  *prometheus.Registry
	runtime   bool

	modelFetches     *prometheus.CounterVec
	modelLatency     *prometheus.HistogramVec
	ensembleMembers  prometheus.Histogram
	ensembleDegraded prometheus.Counter
	geocodes         *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	analysisLatency  *prometheus.HistogramVec
}

// NewManager creates a metrics manager on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "meteo",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.modelFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "model",
		Name:      "fetches_total",
		Help:      "Model forecast fetches by model and outcome.",
	}, []string{"model", "outcome"})
	m.modelLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "model",
		Name:      "fetch_duration_seconds",
		Help:      "Latency of model forecast fetches.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	}, []string{"model"})
	m.ensembleMembers = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "ensemble",
		Name:      "members",
		Help:      "Number of models contributing to an ensemble.",
		Buckets:   prometheus.LinearBuckets(0, 1, 9),
	})
	m.ensembleDegraded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ensemble",
		Name:      "degraded_total",
		Help:      "Ensembles built with fewer models than configured.",
	})
	m.geocodes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "geocoder",
		Name:      "lookups_total",
		Help:      "Geocoding lookups by outcome.",
	}, []string{"outcome"})
	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by pipeline stage and result.",
	}, []string{"stage", "result"})

	m.analysisLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "End-to-end latency of uncached analyses by outcome.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"outcome"})

	m.registry.MustRegister(
		m.modelFetches,
		m.modelLatency,
		m.ensembleMembers,
		m.ensembleDegraded,
		m.geocodes,
		m.cacheLookups,
		m.analysisLatency,
	)
	if m.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) ModelFetched(model string, ok bool, took time.Duration) {
	m.modelFetches.WithLabelValues(model, outcome(ok)).Inc()
	m.modelLatency.WithLabelValues(model).Observe(took.Seconds())
}

func (m *Manager) EnsembleBuilt(members, configured int) {
	m.ensembleMembers.Observe(float64(members))
	if members < configured {
		m.ensembleDegraded.Inc()
	}
}

func (m *Manager) Geocoded(ok bool) {
	m.geocodes.WithLabelValues(outcome(ok)).Inc()
}

func (m *Manager) CacheLookup(stage string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(stage, result).Inc()
}

func (m *Manager) AnalysisFinished(ok bool, took time.Duration) {
	m.analysisLatency.WithLabelValues(outcome(ok)).Observe(took.Seconds())
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
