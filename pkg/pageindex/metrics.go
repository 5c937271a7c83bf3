package pageindex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are per index instance. promauto.With(nil) creates the collectors
// without registering them, so tests and embedders that do not care about
// metrics can open any number of indexes.
type metrics struct {
	rowsProcessed *prometheus.CounterVec
	pagesIndexed  prometheus.Counter
	failures      prometheus.Counter
	linksResolved prometheus.Counter
	queueLength   prometheus.Gauge
	stepDuration  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)

	return &metrics{
		rowsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pageindex_rows_processed_total",
			Help: "Page rows processed by the tree walker, by needs-check state",
		}, []string{"state"}),
		pagesIndexed: f.NewCounter(prometheus.CounterOpts{
			Name: "pageindex_pages_indexed_total",
			Help: "Pages whose content was re-read and re-indexed",
		}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Name: "pageindex_index_failures_total",
			Help: "Rows skipped after a store, parse or consistency failure",
		}),
		linksResolved: f.NewCounter(prometheus.CounterOpts{
			Name: "pageindex_links_resolved_total",
			Help: "Flagged links re-resolved by the tree walker",
		}),
		queueLength: f.NewGauge(prometheus.GaugeOpts{
			Name: "pageindex_queue_length",
			Help: "Rows with a nonzero needs-check state after the last walker step",
		}),
		stepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pageindex_step_duration_seconds",
			Help:    "Duration of one walker step including its transaction",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}
