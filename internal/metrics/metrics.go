// Package metrics records batch pipeline metrics in a private Prometheus
// registry and writes them as a node-exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "abtest"

// Stage names used as the stage label
const (
	StageLoad       = "load"
	StageClean      = "clean"
	StageTest       = "test"
	StageFeatures   = "features"
	StageRegression = "regression"
	StageSave       = "save"
)

// PipelineMetrics groups every metric a run records. All methods are safe
// for concurrent use by batch workers.
type PipelineMetrics struct {
	registry *prometheus.Registry

	RunsTotal            *prometheus.CounterVec
	RowsLoadedTotal      prometheus.Counter
	RowsRemovedTotal     *prometheus.CounterVec
	StageDurationSeconds *prometheus.HistogramVec
	PValue               *prometheus.GaugeVec
	ZStatistic           *prometheus.GaugeVec
}

// New creates metrics registered with a fresh registry
func New() *PipelineMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PipelineMetrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
		RowsLoadedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rows_loaded_total",
				Help:      "Rows read from input files",
			},
		),
		RowsRemovedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rows_removed_total",
				Help:      "Rows dropped by cleaning, by reason",
			},
			[]string{"reason"},
		),
		StageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent per pipeline stage",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"stage"},
		),
		PValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "p_value",
				Help:      "Two-sided p-value of the latest z-test per source",
			},
			[]string{"source"},
		),
		ZStatistic: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "z_statistic",
				Help:      "z statistic of the latest z-test per source",
			},
			[]string{"source"},
		),
	}
}

// Registry exposes the underlying registry
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun counts a finished run
func (m *PipelineMetrics) RecordRun(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RecordLoaded adds loaded rows
func (m *PipelineMetrics) RecordLoaded(rows int) {
	m.RowsLoadedTotal.Add(float64(rows))
}

// RecordRemoved adds rows dropped by the cleaning filters
func (m *PipelineMetrics) RecordRemoved(inconsistent, duplicates int) {
	m.RowsRemovedTotal.WithLabelValues("inconsistent").Add(float64(inconsistent))
	m.RowsRemovedTotal.WithLabelValues("duplicate").Add(float64(duplicates))
}

// ObserveStage records the time since start for stage
func (m *PipelineMetrics) ObserveStage(stage string, start time.Time) {
	m.StageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordTest stores the test statistics of source
func (m *PipelineMetrics) RecordTest(source string, z, p float64) {
	m.ZStatistic.WithLabelValues(source).Set(z)
	m.PValue.WithLabelValues(source).Set(p)
}

// WriteTextfile writes every metric in the text exposition format
func (m *PipelineMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
