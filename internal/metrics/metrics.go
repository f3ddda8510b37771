// Package metrics holds the prometheus collectors shared by the analysis
// pipeline and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Signals reported by the lookup collectors.
const (
	SignalRegistry   = "registry"
	SignalSimilarity = "similarity"
	SignalPopularity = "popularity"
)

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "importrisk_lookups_total",
		Help: "Total package signal lookups by signal and outcome.",
	}, []string{"signal", "outcome"})

	lookupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "importrisk_lookup_duration_seconds",
		Help:    "Signal lookup duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"signal"})

	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "importrisk_analyses_total",
		Help: "Total analysis calls by result.",
	}, []string{"result"})

	packagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "importrisk_packages_total",
		Help: "Total packages classified by risk level.",
	}, []string{"risk"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "importrisk_http_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "importrisk_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// ObserveLookup records one signal lookup and how long it took.
func ObserveLookup(signal, outcome string, d time.Duration) {
	lookupsTotal.WithLabelValues(signal, outcome).Inc()
	lookupDuration.WithLabelValues(signal).Observe(d.Seconds())
}

// RecordAnalysis records a finished analysis call ("ok", "parse_error", ...).
func RecordAnalysis(result string) {
	analysesTotal.WithLabelValues(result).Inc()
}

// RecordPackage records the verdict for one package.
func RecordPackage(risk string) {
	packagesTotal.WithLabelValues(risk).Inc()
}

// RecordHTTPRequest records one served API request.
func RecordHTTPRequest(method, path, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
