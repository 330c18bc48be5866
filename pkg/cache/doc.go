// Package cache provides the cache-or-fetch service for generated event
// summaries, backed by the relational store.
//
// Every summary is addressed by a deterministic key derived from the event
// title and year:
//
//   - Keys are the lowercase hex SHA-256 of "<title>|<year>"
//   - A year overview (empty title) uses the title "__year__"
//   - The free-text context never contributes to the key
//
// # Basic Usage
//
//	manager := cache.NewManager(st, gen, cache.DefaultConfig())
//
//	content, cached, err := manager.Resolve(ctx, 755, "安史之乱", "唐朝由盛转衰")
//	if errors.Is(err, cache.ErrFetchFailed) {
//		// Upstream failure; nothing was stored
//	}
//
// # Invalidation and Cleanup
//
// Invalidate soft-deletes an entry so the next Resolve fetches again.
// Cleanup physically removes entries last updated at least maxAgeDays ago,
// including soft-deleted ones:
//
//	_ = manager.Invalidate(ctx, cache.DeriveKey("安史之乱", 755))
//	removed, err := manager.Cleanup(ctx, 365)
//
// # Concurrent Misses
//
// Concurrent misses for one key in a process share a single generator call.
// With Config.Locker set, processes also coordinate through a short lease;
// a process that loses the race waits for the holder's entry instead of
// fetching again. The store's key uniqueness is the last guard: a losing
// insert serves the stored row.
//
// # Metrics
//
//   - history_cache_hits_total - Store hits
//   - history_cache_misses_total - Misses that led to a fetch
//   - history_cache_errors_total{operation} - Failed cache operations
//   - history_cache_duplicate_writes_total - Inserts that lost a race
//   - history_cache_coalesced_total - Misses served by another caller's fetch
//   - history_cache_lease_waits_total{outcome} - Lease wait results
//   - history_cache_invalidations_total - Soft deletes
//   - history_cache_cleanup_removed_total - Rows removed by cleanup
package cache
