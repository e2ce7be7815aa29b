package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/STRATINT/citypulse/internal/models"
)

const namespace = "citypulse"

// Collector exposes Prometheus metrics for inbound HTTP requests and the
// ingestion pipeline.
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	sourceRuns    *prometheus.CounterVec
	records       *prometheus.CounterVec
	transitions   *prometheus.CounterVec
}

// NewCollector constructs a collector on a private registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycles_total",
			Help:      "Ingestion cycles by result (success, failed, skipped).",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of completed ingestion cycles.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		sourceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "source_runs_total",
			Help:      "Source adapter runs by result.",
		}, []string{"source", "result"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Records merged into the catalog by outcome.",
		}, []string{"source", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Catalog status transitions and deletions applied by kind.",
		}, []string{"kind"}),
	}

	for _, collector := range []prometheus.Collector{
		c.requestDuration, c.requestTotal,
		c.cycles, c.cycleDuration, c.sourceRuns, c.records, c.transitions,
	} {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// CycleFinished records a full ingestion cycle. Duration is only observed
// for cycles that actually ran.
func (c *Collector) CycleFinished(result string, d time.Duration) {
	c.cycles.WithLabelValues(result).Inc()
	if d > 0 {
		c.cycleDuration.Observe(d.Seconds())
	}
}

// SourceRun records one adapter run.
func (c *Collector) SourceRun(source string, success bool) {
	result := "success"
	if !success {
		result = "failed"
	}
	c.sourceRuns.WithLabelValues(source, result).Inc()
}

// RecordMerged records the merge outcome of one record.
func (c *Collector) RecordMerged(source string, outcome models.MergeOutcome) {
	c.records.WithLabelValues(source, string(outcome)).Inc()
}

// Transitions records n lifecycle changes of the given kind.
func (c *Collector) Transitions(kind string, n int) {
	if n <= 0 {
		return
	}
	c.transitions.WithLabelValues(kind).Add(float64(n))
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
