package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineCollector exposes Prometheus metrics for scrape runs. It holds a
// private registry so embedding programs control what gets exposed.
type PipelineCollector struct {
	registry       *prometheus.Registry
	fetchedTotal   *prometheus.CounterVec
	outcomeTotal   *prometheus.CounterVec
	fetchErrors    *prometheus.CounterVec
	enrichmentRuns *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
}

// NewPipelineCollector constructs a collector with the pipeline counters.
func NewPipelineCollector() (*PipelineCollector, error) {
	registry := prometheus.NewRegistry()

	fetchedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kulturkalender",
		Subsystem: "pipeline",
		Name:      "candidates_fetched_total",
		Help:      "Total number of candidate events fetched per source.",
	}, []string{"source", "type"})

	outcomeTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kulturkalender",
		Subsystem: "pipeline",
		Name:      "candidate_outcomes_total",
		Help:      "Candidate outcomes after dedup: new, duplicate, review.",
	}, []string{"source", "outcome"})

	fetchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kulturkalender",
		Subsystem: "pipeline",
		Name:      "fetch_errors_total",
		Help:      "Total number of failed source fetches.",
	}, []string{"source"})

	enrichmentRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kulturkalender",
		Subsystem: "pipeline",
		Name:      "enrichment_passes_total",
		Help:      "Enrichment passes that ran, by provider kind.",
	}, []string{"provider"})

	sourceDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kulturkalender",
		Subsystem: "pipeline",
		Name:      "source_duration_seconds",
		Help:      "Wall-clock duration of one source pass.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	for _, c := range []prometheus.Collector{
		fetchedTotal, outcomeTotal, fetchErrors, enrichmentRuns, sourceDuration,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &PipelineCollector{
		registry:       registry,
		fetchedTotal:   fetchedTotal,
		outcomeTotal:   outcomeTotal,
		fetchErrors:    fetchErrors,
		enrichmentRuns: enrichmentRuns,
		sourceDuration: sourceDuration,
	}, nil
}

// Handler returns an HTTP handler for exposing the collector's registry.
func (c *PipelineCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveFetched records fetched candidates for a source.
func (c *PipelineCollector) ObserveFetched(source, sourceType string, count int) {
	c.fetchedTotal.WithLabelValues(source, sourceType).Add(float64(count))
}

// ObserveOutcome records one dedup outcome for a source.
func (c *PipelineCollector) ObserveOutcome(source, outcome string) {
	c.outcomeTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveFetchError records a failed source fetch.
func (c *PipelineCollector) ObserveFetchError(source string) {
	c.fetchErrors.WithLabelValues(source).Inc()
}

// ObserveEnrichment records a completed enrichment pass.
func (c *PipelineCollector) ObserveEnrichment(provider string) {
	c.enrichmentRuns.WithLabelValues(provider).Inc()
}

// ObserveSourceDuration records the wall-clock time of one source pass.
func (c *PipelineCollector) ObserveSourceDuration(source string, d time.Duration) {
	c.sourceDuration.WithLabelValues(source).Observe(d.Seconds())
}
