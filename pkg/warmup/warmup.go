package warmup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/history-river/pkg/cache"
	"github.com/Sternrassler/history-river/pkg/store"
)

var warmupEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "history_warmup_events_total",
	Help: "Total events handled by the cache warm-up by result",
}, []string{"result"}) // "skipped", "fetched", "failed"

// EventSource lists the events to warm.
type EventSource interface {
	ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error)
}

// Resolver is the part of the cache service the warm-up drives.
type Resolver interface {
	Lookup(ctx context.Context, key string) (*store.CacheEntry, error)
	Resolve(ctx context.Context, year int, title, userContext string) (string, bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Config holds warm-up configuration
type Config struct {
	// Concurrency is the number of parallel workers
	Concurrency int

	// Delay is the pause each worker takes after a generator call
	Delay time.Duration

	// PageSize is the number of events read from the store per query
	PageSize int

	// MinContentLength marks cached texts of this many runes or fewer as
	// stubs to regenerate
	MinContentLength int

	// Timeout per event, retries included
	Timeout time.Duration

	// Retry returns the retry policy for an error class
	Retry func(ErrorClass) RetryConfig
}

// DefaultConfig returns a configuration that stays well under OpenRouter's
// free-tier limits.
func DefaultConfig() Config {
	return Config{
		Concurrency:      1,
		Delay:            10 * time.Second,
		PageSize:         100,
		MinContentLength: 50,
		Timeout:          10 * time.Minute,
		Retry:            RetryConfigForErrorClass,
	}
}

// Report summarises a warm-up run.
type Report struct {
	Processed int
	Skipped   int
	Fetched   int
	Failed    int
	Duration  time.Duration
}

// Warmer resolves every event through the cache service.
type Warmer struct {
	events   EventSource
	resolver Resolver
	config   Config
	logger   zerolog.Logger
}

// New creates a warmer.
func New(events EventSource, resolver Resolver, config Config) *Warmer {
	defaults := DefaultConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Delay < 0 {
		config.Delay = 0
	}
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.MinContentLength < 0 {
		config.MinContentLength = 0
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Retry == nil {
		config.Retry = defaults.Retry
	}
	return &Warmer{
		events:   events,
		resolver: resolver,
		config:   config,
		logger:   log.With().Str("component", "warmup").Logger(),
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeFetched
	outcomeFailed
)

// Run warms the cache for every event. Per-event failures are counted, not
// returned; the error is non-nil only when listing events fails or ctx ends.
func (w *Warmer) Run(ctx context.Context) (Report, error) {
	start := time.Now()

	events, err := w.listAll(ctx)
	if err != nil {
		return Report{}, err
	}

	w.logger.Info().
		Int("events", len(events)).
		Int("concurrency", w.config.Concurrency).
		Dur("delay", w.config.Delay).
		Msg("Starting cache warm-up")

	queue := make(chan *store.Event, len(events))
	for _, event := range events {
		queue <- event
	}
	close(queue)

	var (
		processed, skipped, fetched, failed atomic.Int64
		wg                                  sync.WaitGroup
	)
	total := len(events)

	for i := 0; i < w.config.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for event := range queue {
				if ctx.Err() != nil {
					return
				}

				switch w.warmEvent(ctx, event) {
				case outcomeSkipped:
					skipped.Add(1)
				case outcomeFetched:
					fetched.Add(1)
				case outcomeFailed:
					failed.Add(1)
				}

				n := processed.Add(1)
				if n%50 == 0 {
					w.logger.Info().
						Int64("processed", n).
						Int("total", total).
						Float64("progress_pct", float64(n)/float64(total)*100).
						Msg("Warm-up progress")
				}
			}
			w.logger.Debug().Int("worker_id", workerID).Msg("Worker completed")
		}(i)
	}
	wg.Wait()

	report := Report{
		Processed: int(processed.Load()),
		Skipped:   int(skipped.Load()),
		Fetched:   int(fetched.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(start),
	}

	w.logger.Info().
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("fetched", report.Fetched).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("Cache warm-up complete")

	return report, ctx.Err()
}

func (w *Warmer) listAll(ctx context.Context) ([]*store.Event, error) {
	var all []*store.Event
	for offset := 0; ; offset += w.config.PageSize {
		page, err := w.events.ListEvents(ctx, &store.FindEvent{
			Limit:  w.config.PageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < w.config.PageSize {
			return all, nil
		}
	}
}

func (w *Warmer) warmEvent(ctx context.Context, event *store.Event) outcome {
	key := cache.DeriveKey(event.Title, event.Year)
	logger := w.logger.With().Int("year", event.Year).Str("title", event.Title).Logger()

	entry, err := w.resolver.Lookup(ctx, key)
	switch {
	case err == nil && utf8.RuneCountInString(entry.Content) > w.config.MinContentLength:
		warmupEventsTotal.WithLabelValues("skipped").Inc()
		logger.Debug().Msg("Already cached, skipping")
		return outcomeSkipped
	case err == nil:
		// Stub text from an earlier run; fetch it again.
		if err := w.resolver.Invalidate(ctx, key); err != nil {
			warmupEventsTotal.WithLabelValues("failed").Inc()
			logger.Error().Err(err).Msg("Failed to invalidate stub entry")
			return outcomeFailed
		}
	case !errors.Is(err, cache.ErrCacheMiss):
		warmupEventsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Msg("Cache lookup failed")
		return outcomeFailed
	}

	eventCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	err = retryWithBackoff(eventCtx, logger, w.config.Retry, func() error {
		_, _, err := w.resolver.Resolve(eventCtx, event.Year, event.Title, event.Description)
		return err
	})
	if err != nil {
		warmupEventsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Msg("Failed to warm event")
		return outcomeFailed
	}

	warmupEventsTotal.WithLabelValues("fetched").Inc()
	logger.Info().Msg("Saved to cache")

	if w.config.Delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(w.config.Delay):
		}
	}
	return outcomeFetched
}
