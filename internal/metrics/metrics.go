// Package metrics collects and exposes Prometheus metrics for the journal.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics sink used by the journal and enrichment layers.
type Recorder interface {
	RecordEntryCreated()
	RecordEnrichment(mode, outcome string, d time.Duration)
	RecordEndpointStatus(status int)
	RecordInsightsCoalesced()
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordEntryCreated()                            {}
func (Nop) RecordEnrichment(string, string, time.Duration) {}
func (Nop) RecordEndpointStatus(int)                       {}
func (Nop) RecordInsightsCoalesced()                       {}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	entriesCreated    prometheus.Counter
	enrichments       *prometheus.CounterVec
	enrichLatency     *prometheus.HistogramVec
	endpointStatus    *prometheus.CounterVec
	insightsCoalesced prometheus.Counter
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		entriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solace_entries_created_total",
			Help: "Journal entries persisted.",
		}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solace_enrichment_requests_total",
			Help: "Enrichment calls by mode (entry, digest) and outcome.",
		}, []string{"mode", "outcome"}),
		enrichLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "solace_enrichment_latency_seconds",
			Help:    "Latency of enrichment calls including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		endpointStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solace_enrichment_endpoint_status_total",
			Help: "Responses served by the /enrichment endpoint by status code.",
		}, []string{"status_code"}),
		insightsCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solace_insights_coalesced_total",
			Help: "Insight requests that joined an in-flight call for the same entry.",
		}),
	}

	reg.MustRegister(
		c.entriesCreated,
		c.enrichments,
		c.enrichLatency,
		c.endpointStatus,
		c.insightsCoalesced,
	)
	return c
}

// RecordEntryCreated counts a persisted entry.
func (c *Collector) RecordEntryCreated() {
	c.entriesCreated.Inc()
}

// RecordEnrichment counts an enrichment call and observes its latency.
func (c *Collector) RecordEnrichment(mode, outcome string, d time.Duration) {
	c.enrichments.WithLabelValues(mode, outcome).Inc()
	c.enrichLatency.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordEndpointStatus counts a response of the enrichment endpoint.
func (c *Collector) RecordEndpointStatus(status int) {
	c.endpointStatus.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordInsightsCoalesced counts a coalesced insight request.
func (c *Collector) RecordInsightsCoalesced() {
	c.insightsCoalesced.Inc()
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
