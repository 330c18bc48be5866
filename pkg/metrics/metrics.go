// Package metrics exposes the Prometheus registry shared by all history-river
// packages. Metrics are defined in their own packages (cache, generator,
// lease, warmup, api) and registered via promauto.
//
// This package provides the exposition handler and a reference of all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by all packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source the exposition handler reads from.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving the text exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - history_cache_hits_total (Counter): Lookups answered from the store
//   - history_cache_misses_total (Counter): Lookups that required a generator call
//   - history_cache_errors_total{operation} (Counter): lookup, fetch, persist, invalidate, cleanup
//   - history_cache_duplicate_writes_total (Counter): Inserts that lost a race to another writer
//   - history_cache_coalesced_total (Counter): Misses served by another in-flight fetch
//   - history_cache_lease_waits_total{outcome} (Counter): filled, released, timeout
//   - history_cache_invalidations_total (Counter): Soft deletes
//   - history_cache_cleanup_removed_total (Counter): Rows removed by age-based cleanup
//
// Generator Metrics (pkg/generator):
//   - history_generator_requests_total{outcome} (Counter): ok, empty, network, status, payload
//   - history_generator_request_duration_seconds (Histogram): Upstream call duration
//
// Lease Metrics (pkg/lease):
//   - history_lease_acquisitions_total{result} (Counter): acquired, held, error
//
// Warm-up Metrics (pkg/warmup):
//   - history_warmup_events_total{result} (Counter): skipped, fetched, failed
//   - history_warmup_retries_total{error_class} (Counter): Retry attempts by error class
//   - history_warmup_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - history_warmup_retry_exhausted_total{error_class} (Counter): Events that exhausted retries
//
// HTTP Metrics (pkg/api):
//   - history_http_requests_total{route, status} (Counter): Requests by route and status
//   - history_http_request_duration_seconds{route} (Histogram): Request duration
//   - history_http_rate_limited_total (Counter): Requests rejected by the per-IP limiter
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(history_cache_hits_total[5m])) /
//   (sum(rate(history_cache_hits_total[5m])) + sum(rate(history_cache_misses_total[5m])))
//
//   # Generator Failure Rate
//   sum(rate(history_generator_requests_total{outcome!="ok"}[5m]))
//
//   # P95 Generator Latency
//   histogram_quantile(0.95, rate(history_generator_request_duration_seconds_bucket[5m]))
