// Package metrics provides Prometheus metrics for reading, searching and
// indexing. Metrics live on a private registry and are exported as a
// node-exporter textfile at the end of a run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all counters and histograms. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsRead      *prometheus.CounterVec
	FormsRead          prometheus.Counter
	MalformedDocuments *prometheus.CounterVec
	Matches            prometheus.Counter
	FilesIndexed       *prometheus.CounterVec
	IndexDuration      prometheus.Histogram
	SearchDuration     prometheus.Histogram
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.DocumentsRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callsite_documents_read_total",
			Help: "Total number of documents read",
		},
		[]string{"dialect"},
	)
	m.FormsRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "callsite_forms_read_total",
		Help: "Total number of top-level forms read",
	})
	m.MalformedDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callsite_malformed_documents_total",
			Help: "Documents whose reading stopped before the end of input",
		},
		[]string{"dialect"},
	)
	m.Matches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "callsite_matches_total",
		Help: "Total number of call-site matches found by searches",
	})
	m.FilesIndexed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callsite_files_indexed_total",
			Help: "Files processed by the indexer, by outcome",
		},
		[]string{"outcome"},
	)
	m.IndexDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "callsite_index_duration_seconds",
		Help:    "Duration of IndexFiles runs in seconds",
		Buckets: prometheus.DefBuckets,
	})
	m.SearchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "callsite_search_duration_seconds",
		Help:    "Duration of direct searches in seconds",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(
		m.DocumentsRead, m.FormsRead, m.MalformedDocuments, m.Matches,
		m.FilesIndexed, m.IndexDuration, m.SearchDuration,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveDocument records one read document.
func (m *Metrics) ObserveDocument(dialect string, forms int, malformed bool) {
	if m == nil {
		return
	}
	if dialect == "" {
		dialect = "unknown"
	}
	m.DocumentsRead.WithLabelValues(dialect).Inc()
	m.FormsRead.Add(float64(forms))
	if malformed {
		m.MalformedDocuments.WithLabelValues(dialect).Inc()
	}
}

// ObserveMatches records matches found by a search.
func (m *Metrics) ObserveMatches(n int) {
	if m == nil {
		return
	}
	m.Matches.Add(float64(n))
}

// ObserveFile records the outcome of indexing one file: "indexed",
// "unchanged", "skipped" or "error".
func (m *Metrics) ObserveFile(outcome string) {
	if m == nil {
		return
	}
	m.FilesIndexed.WithLabelValues(outcome).Inc()
}

// ObserveIndex records the duration of an index run started at start.
func (m *Metrics) ObserveIndex(start time.Time) {
	if m == nil {
		return
	}
	m.IndexDuration.Observe(time.Since(start).Seconds())
}

// ObserveSearch records the duration of a search started at start.
func (m *Metrics) ObserveSearch(start time.Time) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(time.Since(start).Seconds())
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
