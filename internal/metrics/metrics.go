// Package metrics holds the daemon's Prometheus self-telemetry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Collection cycle metrics
	collectionCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ioperf_collection_cycles_total",
			Help: "Total number of completed collection cycles",
		},
		[]string{"regime"}, // boot-time, periodic, custom
	)

	sourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ioperf_source_failures_total",
			Help: "Total number of proc source read failures",
		},
		[]string{"source"}, // uid_io, system, process
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ioperf_collection_cycle_duration_seconds",
			Help:    "Time taken to read all proc sources and commit one sample",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	historyRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ioperf_history_records",
			Help: "Number of samples currently retained per regime",
		},
		[]string{"regime"},
	)

	dumpRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ioperf_dump_requests_total",
			Help: "Total number of dump requests served",
		},
	)
)

// CycleCompleted records one finished collection cycle.
func CycleCompleted(regime string, seconds float64) {
	collectionCycles.WithLabelValues(regime).Inc()
	cycleDuration.Observe(seconds)
}

// SourceFailed records a proc source read failure.
func SourceFailed(source string) {
	sourceFailures.WithLabelValues(source).Inc()
}

// HistorySize records the current retained sample count for a regime.
func HistorySize(regime string, n int) {
	historyRecords.WithLabelValues(regime).Set(float64(n))
}

// DumpRequested records one served dump request.
func DumpRequested() {
	dumpRequests.Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
