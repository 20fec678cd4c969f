// Package metrics exposes Prometheus collectors for the gateway service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turboduck_http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turboduck_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "route"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turboduck_cache_lookups_total",
			Help: "Response cache lookups, labeled by route and result (hit, miss, expired).",
		},
		[]string{"route", "result"},
	)

	cacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turboduck_cache_evictions_total",
			Help: "Response cache evictions, labeled by reason (capacity, expired).",
		},
		[]string{"reason"},
	)

	rateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turboduck_ratelimit_decisions_total",
			Help: "Admission decisions, labeled by decision (allow, deny).",
		},
		[]string{"decision"},
	)

	rateLimitIdentities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turboduck_ratelimit_identities",
			Help: "Number of client identities currently tracked by the admission limiter.",
		},
	)

	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turboduck_backend_requests_total",
			Help: "Upstream search requests, labeled by surface and status.",
		},
		[]string{"surface", "status"},
	)

	backendDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turboduck_backend_duration_seconds",
			Help:    "Upstream search latency, labeled by surface.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"surface"},
	)

	enrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turboduck_enrichments_total",
			Help: "Per-URL enrichment outcomes, labeled by mode and status.",
		},
		[]string{"mode", "status"},
	)

	enrichBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turboduck_enrich_bytes_total",
			Help: "Total bytes fetched for enrichment, labeled by mode.",
		},
		[]string{"mode"},
	)

	extractionStrategyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turboduck_extraction_strategy_total",
			Help: "Extraction chain commits, labeled by winning strategy.",
		},
		[]string{"strategy"},
	)

	throttleDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turboduck_throttle_delay_seconds",
			Help:    "Histogram of outbound throttle wait durations, labeled by throttle name.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"throttle"},
	)

	headlessPromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turboduck_headless_promotions_total",
			Help: "Static fetches promoted to headless rendering, labeled by result.",
		},
		[]string{"result"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCacheLookup records a response cache lookup.
func ObserveCacheLookup(route, result string) {
	cacheLookupsTotal.WithLabelValues(route, result).Inc()
}

// ObserveCacheEviction records a cache eviction.
func ObserveCacheEviction(reason string) {
	cacheEvictionsTotal.WithLabelValues(reason).Inc()
}

// ObserveAdmission records an admission decision.
func ObserveAdmission(allowed bool) {
	decision := "allow"
	if !allowed {
		decision = "deny"
	}
	rateLimitDecisionsTotal.WithLabelValues(decision).Inc()
}

// SetTrackedIdentities sets the tracked identities gauge.
func SetTrackedIdentities(n int) {
	rateLimitIdentities.Set(float64(n))
}

// ObserveBackend records one upstream search call.
func ObserveBackend(surface, status string, duration time.Duration) {
	backendRequestsTotal.WithLabelValues(surface, status).Inc()
	backendDurationSeconds.WithLabelValues(surface).Observe(duration.Seconds())
}

// ObserveEnrichment records the outcome of one enrichment unit. Labels stay
// within fixed sets; target hosts are client-chosen and never become labels.
func ObserveEnrichment(mode, status string, bytesFetched int) {
	enrichmentsTotal.WithLabelValues(mode, status).Inc()
	if bytesFetched > 0 {
		enrichBytesTotal.WithLabelValues(mode).Add(float64(bytesFetched))
	}
}

// ObserveExtractionStrategy records which strategy an extraction committed to.
func ObserveExtractionStrategy(strategy string) {
	extractionStrategyTotal.WithLabelValues(strategy).Inc()
}

// ObserveThrottleDelay records the duration of an outbound throttle wait.
func ObserveThrottleDelay(throttle string, duration time.Duration) {
	throttleDelaySeconds.WithLabelValues(throttle).Observe(duration.Seconds())
}

// ObserveHeadlessPromotion records a headless promotion attempt.
func ObserveHeadlessPromotion(result string) {
	headlessPromotionsTotal.WithLabelValues(result).Inc()
}
