// Package warmup pre-generates event summaries for every stored historical
// event so that first visitors hit the cache.
//
// Example usage:
//
//	manager := cache.NewManager(st, gen, cache.DefaultConfig())
//	warmer := warmup.New(st, manager, warmup.DefaultConfig())
//	report, err := warmer.Run(ctx)
//
// The warmer:
//   - Pages through all events ordered by year
//   - Skips events whose cached text is longer than MinContentLength runes
//   - Invalidates shorter stub texts so they are fetched again
//   - Resolves the rest through a worker pool, pausing Delay after each fetch
//   - Retries rate limits, 5xx responses and network failures with jittered
//     exponential backoff; other failures are counted and skipped
package warmup
