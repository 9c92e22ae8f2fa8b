package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// QWeather API call rate per endpoint. Watch for: error vs success ratio.
	ProviderAPICallsTotal *prometheus.CounterVec

	// Upstream latency per request. Watch for: p95 approaching the 30s call timeout.
	ProviderAPIDuration *prometheus.HistogramVec

	// Tool invocation rate per tool and outcome (success, failure).
	ToolInvocationsTotal *prometheus.CounterVec

	// Tool latency end to end, including resolution and fan-out.
	ToolDuration *prometheus.HistogramVec

	// JWT regenerations. Steady state is roughly one per 23h; a high rate
	// means the cache is not being reused.
	TokenRefreshTotal prometheus.Counter

	// Resolver cache hits. Misses = lookups - hits.
	LocationCacheHitsTotal prometheus.Counter

	// Location lookups that went to the network.
	LocationLookupsTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	ProviderAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerApiCallsTotal",
			Help: "Total number of QWeather API calls",
		},
		[]string{"endpoint", "status"},
	)
	ProviderAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerApiDurationSeconds",
			Help:    "QWeather API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status"},
	)
	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolInvocationsTotal",
			Help: "Total number of MCP tool invocations",
		},
		[]string{"tool", "outcome"},
	)
	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolDurationSeconds",
			Help:    "MCP tool latency in seconds (per invocation)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
	TokenRefreshTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tokenRefreshTotal",
			Help: "Total number of JWT credential regenerations",
		},
	)
	LocationCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "locationCacheHitsTotal",
			Help: "Total number of resolver cache hits",
		},
	)
	LocationLookupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "locationLookupsTotal",
			Help: "Total number of city lookup calls sent upstream",
		},
	)

	registry.MustRegister(
		ProviderAPICallsTotal,
		ProviderAPIDuration,
		ToolInvocationsTotal,
		ToolDuration,
		TokenRefreshTotal,
		LocationCacheHitsTotal,
		LocationLookupsTotal,
	)
}

// MetricsHandler returns the HTTP handler serving the private registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
