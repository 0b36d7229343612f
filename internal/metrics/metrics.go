// Package metrics exposes pipeline counters and timings in Prometheus
// format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	CellsImputed      *prometheus.CounterVec
	ColumnsUnresolved *prometheus.CounterVec
	StepDuration      *prometheus.HistogramVec
	RunsTotal         *prometheus.CounterVec
	RowsLoaded        prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry, so
// tests can hold independent instances.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		CellsImputed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpipe_cells_imputed_total",
				Help: "Missing cells filled by imputation models",
			},
			[]string{"column"},
		),
		ColumnsUnresolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpipe_columns_unresolved_total",
				Help: "Columns left with missing cells after a pass",
			},
			[]string{"column", "status"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendpipe_step_duration_seconds",
				Help:    "Wall-clock duration of each pipeline step",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"step"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpipe_runs_total",
				Help: "Completed pipeline runs by outcome",
			},
			[]string{"status"},
		),
		RowsLoaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trendpipe_rows_loaded_total",
				Help: "Rows loaded into the trending_videos table",
			},
		),
		registry: registry,
	}

	registry.MustRegister(m.CellsImputed, m.ColumnsUnresolved, m.StepDuration, m.RunsTotal, m.RowsLoaded)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
