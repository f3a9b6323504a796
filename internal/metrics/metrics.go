// Package metrics exposes Prometheus counters for resource loading and the
// HTTP API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "riskmap_fetches_total",
		Help: "Resource fetches by kind and outcome",
	}, []string{"kind", "outcome"})
	FetchedBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "riskmap_fetched_bytes_total",
		Help: "Bytes read from resource transports",
	})
	LoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "riskmap_loads_total",
		Help: "Snapshot loads by outcome (committed, superseded, failed)",
	}, []string{"outcome"})
	LoadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskmap_load_duration_ms",
		Help:    "Snapshot build duration in milliseconds",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskmap_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route", "status"})
)

func init() {
	prometheus.MustRegister(
		FetchesTotal,
		FetchedBytesTotal,
		LoadsTotal,
		LoadDurationMs,
		RequestDurationMs,
	)
}

// Handler serves the registered metrics.
func Handler() http.Handler { return promhttp.Handler() }
