// Package metrics provides Prometheus metrics for campushub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthDecisions counts authentication outcomes by decision code.
	AuthDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campushub",
			Name:      "auth_decisions_total",
			Help:      "Total number of authentication decisions",
		},
		[]string{"decision"},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campushub",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	// CacheFallbacksTotal counts cache operations resolved by fallback
	// because the cache was unavailable or errored.
	CacheFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campushub",
			Name:      "cache_fallbacks_total",
			Help:      "Total number of cache operations resolved by fallback",
		},
	)

	// CacheConnectionStatus tracks cache connection status.
	CacheConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "campushub",
			Name:      "cache_connection_status",
			Help:      "Cache connection status (1 = ready, 0 = not ready)",
		},
	)

	// DirectoryLookupsTotal counts identity lookups that reached the user
	// directory instead of being served from cache.
	DirectoryLookupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campushub",
			Name:      "directory_lookups_total",
			Help:      "Total number of identity lookups served by the user directory",
		},
	)
)

// RecordAuthDecision records one authentication outcome.
func RecordAuthDecision(decision string) {
	AuthDecisions.WithLabelValues(decision).Inc()
}

// RecordRateLimited records a request rejected by the rate limiter.
func RecordRateLimited(scope string) {
	RateLimitedTotal.WithLabelValues(scope).Inc()
}

// SetCacheReady marks the cache connection as usable.
func SetCacheReady() {
	CacheConnectionStatus.Set(1)
}

// SetCacheDown marks the cache connection as unusable.
func SetCacheDown() {
	CacheConnectionStatus.Set(0)
}
