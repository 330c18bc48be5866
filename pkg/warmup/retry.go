package warmup

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/history-river/pkg/cache"
	"github.com/Sternrassler/history-river/pkg/generator"
)

// Prometheus metrics for retry operations.
var (
	warmupRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "history_warmup_retries_total",
		Help: "Total number of warm-up retry attempts by error class",
	}, []string{"error_class"})

	warmupRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "history_warmup_retry_backoff_seconds",
		Help:    "Backoff duration for warm-up retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"error_class"})

	warmupRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "history_warmup_retry_exhausted_total",
		Help: "Total number of times warm-up retries were exhausted by error class",
	}, []string{"error_class"})
)

// ErrRetryExhausted is returned when all retry attempts are exhausted.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// ErrorClass groups fetch failures by how they should be retried.
type ErrorClass string

const (
	// ErrorClassPermanent is not retried (4xx, malformed payloads, store errors).
	ErrorClassPermanent ErrorClass = ""

	// ErrorClassServer represents 5xx upstream errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// RetryConfigForErrorClass returns the retry configuration for an error class.
func RetryConfigForErrorClass(errorClass ErrorClass) RetryConfig {
	switch errorClass {
	case ErrorClassRateLimit:
		// OpenRouter rate limits reset per minute
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    60 * time.Second,
			MaxBackoff:        5 * time.Minute,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassServer:
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassNetwork:
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    5 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		}
	default:
		return RetryConfig{MaxAttempts: 1}
	}
}

// ClassifyError maps a cache resolve error onto a retry class. Only
// generator failures are ever retried.
func ClassifyError(err error) ErrorClass {
	if !errors.Is(err, cache.ErrFetchFailed) {
		return ErrorClassPermanent
	}
	var genErr *generator.Error
	if !errors.As(err, &genErr) {
		return ErrorClassPermanent
	}
	switch {
	case genErr.Class == generator.ErrorClassNetwork:
		return ErrorClassNetwork
	case genErr.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case genErr.Retryable():
		return ErrorClassServer
	default:
		return ErrorClassPermanent
	}
}

// retryWithBackoff runs fn until it succeeds, fails permanently, or the
// attempts for its error class run out. The backoff carries ±20% jitter.
func retryWithBackoff(ctx context.Context, logger zerolog.Logger, policy func(ErrorClass) RetryConfig, fn func() error) error {
	var lastErr error
	var backoff time.Duration

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Fetch succeeded after retry")
			}
			return nil
		}
		lastErr = err

		errorClass := ClassifyError(err)
		if errorClass == ErrorClassPermanent {
			return lastErr
		}

		config := policy(errorClass)
		if attempt >= config.MaxAttempts {
			warmupRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("max_attempts", config.MaxAttempts).
				Msg("Retry attempts exhausted")
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, lastErr)
		}

		if attempt == 1 || backoff < config.InitialBackoff {
			backoff = config.InitialBackoff
		}

		warmupRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		warmupRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(jitter.Seconds())

		logger.Debug().
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying fetch after backoff")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}
}
