package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "glider_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	registry prometheus.Gatherer

	FilesIngested   prometheus.Counter
	FilesSkipped    prometheus.Counter
	RowsDropped     prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Stage metrics.
	StageRows     *prometheus.GaugeVec     // labels: stage, direction={in,out}
	StageAffected *prometheus.GaugeVec     // labels: stage
	StageDuration *prometheus.HistogramVec // labels: stage
	StepOutcomes  *prometheus.CounterVec   // labels: stage, status

	// Conversion metrics.
	ConversionFailures *prometheus.CounterVec // labels: step
	AnomalyCache       *prometheus.CounterVec // labels: result={hit,miss}

	RowsPublished prometheus.Counter
	RunsTotal     *prometheus.CounterVec // labels: status
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_ingested_total",
			Help:      "Raw payload files read successfully.",
		}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Raw payload files skipped because they could not be read.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Fully empty raw rows dropped during ingestion.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		StageRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_rows",
			Help:      "Rows entering and leaving each stage in the last run.",
		}, []string{"stage", "direction"}),
		StageAffected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_rows_affected",
			Help:      "Rows changed by each stage in the last run.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage including persistence.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		StepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_outcomes_total",
			Help:      "Transform steps by stage and status.",
		}, []string{"stage", "status"}),
		ConversionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversion_failures_total",
			Help:      "Unit conversions aborted for a whole column.",
		}, []string{"step"}),
		AnomalyCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saar_cache_total",
			Help:      "Absolute Salinity Anomaly Ratio cache lookups by result.",
		}, []string{"result"}),
		RowsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_published_total",
			Help:      "Final rows written to Kafka.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed pipeline runs by terminal status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FilesIngested,
		m.FilesSkipped,
		m.RowsDropped,
		m.PipelineRunning,
		m.StageRows,
		m.StageAffected,
		m.StageDuration,
		m.StepOutcomes,
		m.ConversionFailures,
		m.AnomalyCache,
		m.RowsPublished,
		m.RunsTotal,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	m.registry = prometheus.DefaultGatherer
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	m.registry = reg
	return m
}

// WriteTextfile writes the current metric values in the Prometheus text
// format, for collection by the node exporter textfile collector after a
// batch run.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Gatherer returns the registry the metrics are registered with.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
