// Package metrics provides Prometheus counters for imports, reports and
// price aggregation. The CLI is short lived, so metrics are written to a
// node-exporter textfile instead of being served.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors of one registry. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// Import metrics
	RowsNormalized *prometheus.CounterVec
	ImportIssues   *prometheus.CounterVec
	RecordsSaved   *prometheus.CounterVec
	ImportsTotal   *prometheus.CounterVec
	ImportDuration *prometheus.HistogramVec
	LastImportUnix prometheus.Gauge

	// Report metrics
	ReportsBuilt prometheus.Counter
	CacheLookups *prometheus.CounterVec

	// Price metrics
	CandlesBuilt *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tradeledger"
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RowsNormalized: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_normalized_total",
			Help:      "Total number of statement rows normalized by format",
		}, []string{"format"}),
		ImportIssues: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "issues_total",
			Help:      "Total number of import issues by kind",
		}, []string{"kind"}),
		RecordsSaved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "records_saved_total",
			Help:      "Total number of canonical records committed by kind",
		}, []string{"kind"}),
		ImportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "batches_total",
			Help:      "Total number of import batches by status",
		}, []string{"status"}),
		ImportDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Import batch duration by format",
			Buckets:   prometheus.DefBuckets,
		}, []string{"format"}),
		LastImportUnix: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last committed import",
		}),

		ReportsBuilt: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "built_total",
			Help:      "Total number of trade record reports built",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "cache_lookups_total",
			Help:      "Report cache lookups by result",
		}, []string{"result"}),

		CandlesBuilt: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "candles_built_total",
			Help:      "Total number of aggregated candles by interval",
		}, []string{"interval"}),
	}
}

// RecordRows counts normalized rows.
func (m *Metrics) RecordRows(format string, n int) {
	if m == nil {
		return
	}
	m.RowsNormalized.WithLabelValues(format).Add(float64(n))
}

// RecordIssue counts one import issue.
func (m *Metrics) RecordIssue(kind string) {
	if m == nil {
		return
	}
	m.ImportIssues.WithLabelValues(kind).Inc()
}

// RecordImport records a finished batch. status is "committed", "aborted"
// or "failed".
func (m *Metrics) RecordImport(format, status string, trades, transactions int, seconds float64, unix int64) {
	if m == nil {
		return
	}
	m.ImportsTotal.WithLabelValues(status).Inc()
	m.ImportDuration.WithLabelValues(format).Observe(seconds)
	if status != "committed" {
		return
	}
	m.RecordsSaved.WithLabelValues("trade").Add(float64(trades))
	m.RecordsSaved.WithLabelValues("transaction").Add(float64(transactions))
	m.LastImportUnix.Set(float64(unix))
}

func (m *Metrics) RecordReport() {
	if m == nil {
		return
	}
	m.ReportsBuilt.Inc()
}

// RecordCache counts a report cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCandles(interval string, n int) {
	if m == nil {
		return
	}
	m.CandlesBuilt.WithLabelValues(interval).Add(float64(n))
}

// WriteTextfile writes the registry in the text exposition format for the
// node-exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
