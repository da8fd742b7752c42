package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all carlookout metrics
const namespace = "carlookout"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// SearchRequestsTotal tracks aggregation searches by outcome
var SearchRequestsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_requests_total",
		Help:      "Total number of aggregation search requests",
	},
	[]string{"status"}, // status: ok|invalid
)

// SearchLatency tracks end-to-end aggregation latency
var SearchLatency = promauto.With(Registry).NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "search_latency_seconds",
		Help:      "End-to-end aggregation search latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
)

// SourceRequestsTotal tracks per-source dispatch outcomes
var SourceRequestsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_requests_total",
		Help:      "Total number of source dispatch attempts",
	},
	[]string{"source", "status"}, // status: ok|cached|timeout|error|circuit_open
)

// SourceLatency tracks per-source fetch latency
var SourceLatency = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "source_latency_seconds",
		Help:      "Source fetch latency in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"source"},
)

// ListingsFetchedTotal tracks normalized listings returned by each source
var ListingsFetchedTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listings_fetched_total",
		Help:      "Total number of normalized listings fetched from sources",
	},
	[]string{"source"},
)

// CacheHitsTotal tracks result cache hits per source
var CacheHitsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "result_cache_hits_total",
		Help:      "Total number of result cache hits",
	},
	[]string{"source"},
)

// CacheMissesTotal tracks result cache misses per source
var CacheMissesTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "result_cache_misses_total",
		Help:      "Total number of result cache misses",
	},
	[]string{"source"},
)

// BreakerState exposes the circuit breaker state per source
// Values: 0 = closed, 1 = half_open, 2 = open
var BreakerState = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "breaker_state",
		Help:      "Circuit breaker state per source (0=closed, 1=half_open, 2=open)",
	},
	[]string{"source"},
)

// Init initializes the metrics registry and sets version information
func Init(version, commit, buildDate string) {
	// Register default Go metrics (memory, goroutines, GC, etc.)
	Registry.MustRegister(collectors.NewGoCollector())

	// Register process metrics (CPU, memory, file descriptors)
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Set application version info (value is always 1, info is in labels)
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}

// SetBreakerState maps a breaker state string onto the gauge encoding.
func SetBreakerState(source, state string) {
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	BreakerState.WithLabelValues(source).Set(v)
}
