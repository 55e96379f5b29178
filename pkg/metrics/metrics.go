// Package metrics documents the Prometheus metrics of the Ishmael client and
// writes snapshots of them for the node_exporter textfile collector.
//
// Metrics are defined in their respective packages (client, cache, ratelimit)
// to keep those packages independent of each other.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Gatherer is the source of WriteTextfile snapshots. Metrics register with
// the default registry via promauto.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all gathered metrics to path in the text exposition
// format. The file is replaced atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Quota Metrics (pkg/ratelimit):
//   - ishmael_quota_remaining (Gauge): Requests left in the current quota window
//   - ishmael_quota_blocks_total (Counter): Requests blocked by an exhausted quota
//   - ishmael_quota_throttles_total (Counter): Requests delayed by a low quota
//
// Cache Metrics (pkg/cache):
//   - ishmael_cache_hits_total{state="fresh|stale"} (Counter): Cache hits by freshness
//   - ishmael_cache_misses_total (Counter): Cache misses
//   - ishmael_cache_written_bytes_total (Counter): Bytes written to the cache, cumulative
//   - ishmael_304_responses_total (Counter): 304 Not Modified responses
//   - ishmael_conditional_requests_total (Counter): Conditional requests sent
//   - ishmael_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - ishmael_requests_total{endpoint, status} (Counter): Requests by endpoint and outcome
//   - ishmael_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ishmael_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - ishmael_pages_fetched_total{operation} (Counter): Pages fetched by iterators
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ishmael_cache_hits_total[5m])) /
//   (sum(rate(ishmael_cache_hits_total[5m])) + sum(rate(ishmael_cache_misses_total[5m])))
//
//   # Quota Status
//   ishmael_quota_remaining < 10
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ishmael_request_duration_seconds_bucket[5m]))
