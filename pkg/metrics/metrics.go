package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus metrics for one pipeline instance. Each
// Collector owns its registry so tests can build isolated instances.
type Collector struct {
	registry *prometheus.Registry

	RecordsProcessed   *prometheus.CounterVec
	RecordsSkipped     *prometheus.CounterVec
	Candidates         *prometheus.CounterVec
	AdapterFailures    *prometheus.CounterVec
	UnresolvableSenses prometheus.Counter
	Relationships      *prometheus.GaugeVec
	PhraseLinks        *prometheus.GaugeVec
	ResolveDuration    prometheus.Histogram
}

// NewCollector creates and registers all metrics under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		RecordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Raw source records read by an adapter",
		}, []string{"source"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Raw source records skipped by an adapter",
		}, []string{"source", "reason"}),
		Candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relationship_candidates_total",
			Help:      "Relationship candidates proposed by an adapter",
		}, []string{"source"}),
		AdapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_failures_total",
			Help:      "Adapters that failed and degraded the run",
		}, []string{"source"}),
		UnresolvableSenses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolvable_candidates_total",
			Help:      "Candidates dropped because a sense reference did not resolve",
		}),
		Relationships: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relationships",
			Help:      "Canonical relationships in the active run by bucket",
		}, []string{"bucket"}),
		PhraseLinks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phrase_links",
			Help:      "Phrase links in the active run by state",
		}, []string{"state"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving and linking one snapshot",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(
		c.RecordsProcessed,
		c.RecordsSkipped,
		c.Candidates,
		c.AdapterFailures,
		c.UnresolvableSenses,
		c.Relationships,
		c.PhraseLinks,
		c.ResolveDuration,
	)
	return c
}

// Registry exposes the collector's registry for exporters.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes every metric in the Prometheus text format to path,
// for the node exporter's textfile collector. The file is replaced
// atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
