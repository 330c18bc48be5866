package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/history-river/pkg/generator"
	"github.com/Sternrassler/history-river/pkg/lease"
	"github.com/Sternrassler/history-river/pkg/store"
)

var (
	// ErrCacheMiss indicates no live entry exists for the requested key
	ErrCacheMiss = errors.New("cache miss")

	// ErrFetchFailed wraps every generator failure surfaced by Resolve
	ErrFetchFailed = errors.New("fetch failed")

	// ErrInvalidMaxAge indicates a negative cleanup age
	ErrInvalidMaxAge = errors.New("max age must not be negative")
)

// Placeholder is stored when a generator returns blank text.
const Placeholder = generator.Placeholder

// Store is the persistence the manager needs.
type Store interface {
	GetCacheEntry(ctx context.Context, key string) (*store.CacheEntry, error)
	CreateCacheEntry(ctx context.Context, entry *store.CacheEntry) error
	SoftDeleteCacheEntry(ctx context.Context, key string) (bool, error)
	DeleteCacheEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListCacheEntries(ctx context.Context, find *store.FindCacheEntry) ([]*store.CacheEntry, error)
}

// Generator produces the summary text for a year and free-text context.
type Generator interface {
	Generate(ctx context.Context, year int, userContext string) (string, error)
}

// Locker hands out per-key fetch leases shared between processes.
type Locker interface {
	// Acquire returns lease.ErrHeld when another owner holds key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
	Held(ctx context.Context, key string) (bool, error)
}

// Config tunes the manager. The zero value is usable.
type Config struct {
	// Locker adds a cross-process lease around each fetch (optional).
	Locker Locker

	// LeaseTTL bounds how long a lease survives a crashed holder.
	LeaseTTL time.Duration

	// LeaseWait bounds how long a miss waits on a lease held elsewhere
	// before fetching anyway.
	LeaseWait time.Duration

	// PollInterval is the store re-check period while waiting on a lease.
	PollInterval time.Duration

	// FetchTimeout bounds a shared fetch, which outlives the request that
	// started it so callers waiting on the same key are not cancelled with it.
	FetchTimeout time.Duration

	// DisableCoalescing turns off the in-process single-flight guard, so
	// every concurrent miss calls the generator.
	DisableCoalescing bool

	// Now overrides the clock used by Cleanup.
	Now func() time.Time
}

// DefaultConfig returns the configuration used by the server.
func DefaultConfig() Config {
	return Config{
		LeaseTTL:     45 * time.Second,
		LeaseWait:    35 * time.Second,
		PollInterval: 250 * time.Millisecond,
		FetchTimeout: 30 * time.Second,
		Now:          time.Now,
	}
}

// Manager resolves event summaries through the store, calling the generator
// only on a miss.
type Manager struct {
	store     Store
	generator Generator
	config    Config
	flight    singleflight.Group
	logger    zerolog.Logger
}

// NewManager creates a cache manager over the given collaborators.
func NewManager(s Store, g Generator, cfg Config) *Manager {
	if s == nil {
		panic("cache store cannot be nil")
	}
	if g == nil {
		panic("generator cannot be nil")
	}
	defaults := DefaultConfig()
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaults.LeaseTTL
	}
	if cfg.LeaseWait <= 0 {
		cfg.LeaseWait = defaults.LeaseWait
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaults.FetchTimeout
	}
	if cfg.Now == nil {
		cfg.Now = defaults.Now
	}
	return &Manager{
		store:     s,
		generator: g,
		config:    cfg,
		logger:    log.With().Str("component", "event-cache").Logger(),
	}
}

type resolution struct {
	content string
	cached  bool
}

// Resolve returns the summary for (year, title), generating and storing it
// on a miss. cached reports whether the text came from the store.
// Generator failures match ErrFetchFailed and leave the store untouched.
func (m *Manager) Resolve(ctx context.Context, year int, title, userContext string) (content string, cached bool, err error) {
	key := DeriveKey(title, year)

	entry, err := m.Lookup(ctx, key)
	if err == nil {
		m.logger.Debug().Str("key", key).Int("year", year).Str("title", title).Msg("Cache hit")
		return entry.Content, true, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return "", false, err
	}

	CacheMisses.Inc()
	m.logger.Info().Str("key", key).Int("year", year).Str("title", title).Msg("Cache miss, fetching")

	if m.config.DisableCoalescing {
		res, err := m.fetchAndStore(ctx, key, year, title, userContext)
		return res.content, res.cached, err
	}

	leader := false
	ch := m.flight.DoChan(key, func() (any, error) {
		leader = true
		// Detached from ctx: a caller that goes away must not fail the
		// others waiting on this key.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.fetchBudget())
		defer cancel()
		return m.fetchAndStore(fetchCtx, key, year, title, userContext)
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case r = <-ch:
	}
	if r.Shared && !leader {
		CoalescedRequests.Inc()
	}
	if r.Err != nil {
		return "", false, r.Err
	}
	res := r.Val.(resolution)
	// Followers did not trigger the fetch; to them the text was already cached.
	return res.content, res.cached || !leader, nil
}

// fetchBudget covers a full lease wait followed by one generator call.
func (m *Manager) fetchBudget() time.Duration {
	if m.config.Locker != nil {
		return m.config.LeaseWait + m.config.FetchTimeout
	}
	return m.config.FetchTimeout
}

// Lookup returns the live entry for key, or ErrCacheMiss.
func (m *Manager) Lookup(ctx context.Context, key string) (*store.CacheEntry, error) {
	entry, err := m.store.GetCacheEntry(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("lookup").Inc()
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	CacheHits.Inc()
	return entry, nil
}

func (m *Manager) fetchAndStore(ctx context.Context, key string, year int, title, userContext string) (resolution, error) {
	if m.config.Locker != nil {
		release, filled, err := m.acquireLease(ctx, key)
		if err != nil {
			return resolution{}, err
		}
		defer release()
		if filled == nil {
			// A peer may have stored the entry and let go of its lease
			// between our miss and the acquire.
			if entry, err := m.store.GetCacheEntry(ctx, key); err == nil {
				LeaseWaits.WithLabelValues("filled").Inc()
				filled = entry
			}
		}
		if filled != nil {
			return resolution{content: filled.Content, cached: true}, nil
		}
	}

	content, err := m.generator.Generate(ctx, year, userContext)
	if err == nil && strings.TrimSpace(content) == "" {
		m.logger.Warn().Str("key", key).Int("year", year).Msg("Generator returned empty text, storing placeholder")
		content = Placeholder
	}
	if err != nil {
		CacheErrors.WithLabelValues("fetch").Inc()
		m.logger.Error().Err(err).Str("key", key).Int("year", year).Msg("Generator fetch failed")
		return resolution{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	err = m.store.CreateCacheEntry(ctx, &store.CacheEntry{
		Key:     key,
		Year:    year,
		Title:   title,
		Context: userContext,
		Content: content,
		IsFresh: true,
	})
	switch {
	case err == nil:
		m.logger.Info().Str("key", key).Msg("Fetched and cached")
		return resolution{content: content}, nil
	case errors.Is(err, store.ErrDuplicateKey):
		// Another writer stored this key first; serve its row.
		DuplicateWrites.Inc()
		if entry, lookupErr := m.store.GetCacheEntry(ctx, key); lookupErr == nil {
			m.logger.Debug().Str("key", key).Msg("Lost insert race, serving stored entry")
			return resolution{content: entry.Content, cached: true}, nil
		}
		return resolution{content: content}, nil
	default:
		CacheErrors.WithLabelValues("persist").Inc()
		return resolution{}, fmt.Errorf("cache persist: %w", err)
	}
}

// acquireLease takes the fetch lease for key. When another process holds it,
// the store is polled until that process stores the entry (returned as
// filled), the lease goes away, or LeaseWait elapses. Lease backend errors
// degrade to an unguarded fetch.
func (m *Manager) acquireLease(ctx context.Context, key string) (release func(), filled *store.CacheEntry, err error) {
	noop := func() {}
	release, err = m.config.Locker.Acquire(ctx, key, m.config.LeaseTTL)
	if err == nil {
		return release, nil, nil
	}
	if !errors.Is(err, lease.ErrHeld) {
		m.logger.Warn().Err(err).Str("key", key).Msg("Lease unavailable, fetching unguarded")
		return noop, nil, nil
	}

	deadline := time.NewTimer(m.config.LeaseWait)
	defer deadline.Stop()
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-deadline.C:
			LeaseWaits.WithLabelValues("timeout").Inc()
			m.logger.Warn().Str("key", key).Dur("waited", m.config.LeaseWait).Msg("Lease wait timed out")
			return noop, nil, nil
		case <-ticker.C:
		}

		if entry, err := m.store.GetCacheEntry(ctx, key); err == nil {
			LeaseWaits.WithLabelValues("filled").Inc()
			return noop, entry, nil
		}
		held, err := m.config.Locker.Held(ctx, key)
		if err != nil || held {
			continue
		}
		// Holder gave up without storing; take over.
		LeaseWaits.WithLabelValues("released").Inc()
		if release, err := m.config.Locker.Acquire(ctx, key, m.config.LeaseTTL); err == nil {
			return release, nil, nil
		}
		return noop, nil, nil
	}
}

// Invalidate soft-deletes the entry for key. Unknown keys are a no-op.
func (m *Manager) Invalidate(ctx context.Context, key string) error {
	removed, err := m.store.SoftDeleteCacheEntry(ctx, key)
	if err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("cache invalidate: %w", err)
	}
	if removed {
		Invalidations.Inc()
		m.logger.Info().Str("key", key).Msg("Cache entry invalidated")
	}
	return nil
}

// Cleanup physically deletes every entry, soft-deleted or not, last updated
// at or before now minus maxAgeDays. Cleanup(0) empties the cache.
func (m *Manager) Cleanup(ctx context.Context, maxAgeDays int) (int64, error) {
	if maxAgeDays < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMaxAge, maxAgeDays)
	}
	cutoff := m.config.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	removed, err := m.store.DeleteCacheEntriesBefore(ctx, cutoff)
	if err != nil {
		CacheErrors.WithLabelValues("cleanup").Inc()
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	CleanupRemoved.Add(float64(removed))
	m.logger.Info().Int("max_age_days", maxAgeDays).Int64("removed", removed).Msg("Cache cleanup complete")
	return removed, nil
}

// List returns entries matching find, newest first.
func (m *Manager) List(ctx context.Context, find *store.FindCacheEntry) ([]*store.CacheEntry, error) {
	if find == nil {
		find = &store.FindCacheEntry{}
	}
	return m.store.ListCacheEntries(ctx, find)
}
