package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by freshness
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ishmael_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"state"}, // "fresh", "stale"
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ishmael_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheBytesWritten counts bytes written to Redis. It never decreases;
	// expiry and overwrites are not subtracted.
	CacheBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ishmael_cache_written_bytes_total",
			Help: "Total bytes written to the response cache",
		},
	)

	// ConditionalRequestsSent tracks revalidations sent with If-None-Match or If-Modified-Since
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ishmael_conditional_requests_total",
			Help: "Total number of conditional requests sent",
		},
	)

	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ishmael_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ishmael_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
