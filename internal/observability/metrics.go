package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// import service.
type Metrics struct {
	FilesProcessed   *prometheus.CounterVec // labels: kind
	FilesFailed      *prometheus.CounterVec // labels: kind
	RecordsExtracted *prometheus.CounterVec // labels: kind
	AADVCalculations prometheus.Counter
	CheckWarnings    prometheus.Counter
	ImportRunning    prometheus.Gauge

	FileProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all import metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_counts",
			Name:      "files_processed_total",
			Help:      "Total input files successfully imported, by kind of count.",
		}, []string{"kind"}),
		FilesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_counts",
			Name:      "files_failed_total",
			Help:      "Total input files that could not be imported, by kind of count.",
		}, []string{"kind"}),
		RecordsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_counts",
			Name:      "records_extracted_total",
			Help:      "Total data rows extracted from input files, by kind of count.",
		}, []string{"kind"}),
		AADVCalculations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic_counts",
			Name:      "aadv_calculations_total",
			Help:      "Total annual average daily volume calculations stored.",
		}),
		CheckWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic_counts",
			Name:      "check_warnings_total",
			Help:      "Total data check warnings logged for review.",
		}),
		ImportRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic_counts",
			Name:      "import_running",
			Help:      "1 when the import loop is active, 0 when shut down.",
		}),
		FileProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "traffic_counts",
			Name:      "file_processing_duration_seconds",
			Help:      "Duration of one complete file extract-transform-load cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	prometheus.MustRegister(
		m.FilesProcessed,
		m.FilesFailed,
		m.RecordsExtracted,
		m.AADVCalculations,
		m.CheckWarnings,
		m.ImportRunning,
		m.FileProcessingDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FilesProcessed:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "traffic_counts", Name: "files_processed_total"}, []string{"kind"}),
		FilesFailed:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "traffic_counts", Name: "files_failed_total"}, []string{"kind"}),
		RecordsExtracted:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "traffic_counts", Name: "records_extracted_total"}, []string{"kind"}),
		AADVCalculations:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "traffic_counts", Name: "aadv_calculations_total"}),
		CheckWarnings:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "traffic_counts", Name: "check_warnings_total"}),
		ImportRunning:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "traffic_counts", Name: "import_running"}),
		FileProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "traffic_counts", Name: "file_processing_duration_seconds"}),
	}
}
