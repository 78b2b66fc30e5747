// Package metrics defines Cardinal's Prometheus collectors, following the
// same promauto.NewCounterVec pattern the root caddy package uses for its
// admin API metrics (see metrics.go / initAdminMetrics). Supplemental to
// the original source, which carries no metrics crate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cardinal"

// Collectors is the set of counters and histograms Cardinal tracks across
// the proxy loop and the plugin pipeline.
var Collectors = struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	PluginInvocations  *prometheus.CounterVec
	PluginErrors       *prometheus.CounterVec
	RetriesTotal       *prometheus.CounterVec
}{
	RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "proxy",
		Name:      "requests_total",
		Help:      "Counter of requests proxied to a destination.",
	}, []string{"destination", "status"}),

	RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "proxy",
		Name:      "request_duration_seconds",
		Help:      "Observed latency of proxied requests, end to end.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"destination"}),

	PluginInvocations: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "plugin",
		Name:      "invocations_total",
		Help:      "Counter of middleware filter invocations, by plugin and direction.",
	}, []string{"plugin", "direction"}),

	PluginErrors: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "plugin",
		Name:      "errors_total",
		Help:      "Counter of middleware filter invocations that returned an error.",
	}, []string{"plugin", "direction"}),

	RetriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "proxy",
		Name:      "retries_total",
		Help:      "Counter of upstream retry attempts, by destination.",
	}, []string{"destination"}),
}

// ObserveRequest records one completed proxy request.
func ObserveRequest(destination, status string, seconds float64) {
	Collectors.RequestsTotal.WithLabelValues(destination, status).Inc()
	Collectors.RequestDuration.WithLabelValues(destination).Observe(seconds)
}

// ObservePlugin records one middleware filter invocation, success or not.
func ObservePlugin(plugin, direction string, err error) {
	Collectors.PluginInvocations.WithLabelValues(plugin, direction).Inc()
	if err != nil {
		Collectors.PluginErrors.WithLabelValues(plugin, direction).Inc()
	}
}

// ObserveRetry records one retry attempt against a destination.
func ObserveRetry(destination string) {
	Collectors.RetriesTotal.WithLabelValues(destination).Inc()
}
