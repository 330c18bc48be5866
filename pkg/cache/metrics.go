package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks lookups answered from the store
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_cache_hits_total",
			Help: "Total number of event-detail cache hits",
		},
	)

	// CacheMisses tracks lookups that required a generator call
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_cache_misses_total",
			Help: "Total number of event-detail cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "lookup", "fetch", "persist", "invalidate", "cleanup"
	)

	// DuplicateWrites tracks persists that lost the race to another writer
	DuplicateWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_cache_duplicate_writes_total",
			Help: "Total number of cache inserts rejected because the key was already live",
		},
	)

	// CoalescedRequests tracks misses served by another in-flight fetch
	CoalescedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_cache_coalesced_total",
			Help: "Total number of misses that shared an in-flight fetch",
		},
	)

	// LeaseWaits tracks waits on a lease held by another process
	LeaseWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_cache_lease_waits_total",
			Help: "Total number of waits on a fetch lease held elsewhere",
		},
		[]string{"outcome"}, // "filled", "released", "timeout"
	)

	// Invalidations tracks soft deletes
	Invalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_cache_invalidations_total",
			Help: "Total number of cache entries soft-deleted",
		},
	)

	// CleanupRemoved tracks rows physically removed by cleanup
	CleanupRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_cache_cleanup_removed_total",
			Help: "Total number of cache entries removed by age-based cleanup",
		},
	)
)
