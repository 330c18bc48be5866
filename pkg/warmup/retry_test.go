package warmup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/history-river/pkg/cache"
	"github.com/Sternrassler/history-river/pkg/generator"
)

func fetchFailed(err error) error {
	return fmt.Errorf("%w: %w", cache.ErrFetchFailed, err)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{
			name:     "rate limit",
			err:      fetchFailed(&generator.Error{Class: generator.ErrorClassStatus, StatusCode: 429}),
			expected: ErrorClassRateLimit,
		},
		{
			name:     "server error",
			err:      fetchFailed(&generator.Error{Class: generator.ErrorClassStatus, StatusCode: 502}),
			expected: ErrorClassServer,
		},
		{
			name:     "network",
			err:      fetchFailed(&generator.Error{Class: generator.ErrorClassNetwork}),
			expected: ErrorClassNetwork,
		},
		{
			name:     "client error",
			err:      fetchFailed(&generator.Error{Class: generator.ErrorClassStatus, StatusCode: 400}),
			expected: ErrorClassPermanent,
		},
		{
			name:     "payload",
			err:      fetchFailed(&generator.Error{Class: generator.ErrorClassPayload}),
			expected: ErrorClassPermanent,
		},
		{
			name:     "unclassified generator error",
			err:      fetchFailed(errors.New("unexpected reply")),
			expected: ErrorClassPermanent,
		},
		{
			name:     "store error",
			err:      errors.New("cache persist: disk full"),
			expected: ErrorClassPermanent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.expected {
				t.Errorf("ClassifyError() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRetryConfigForErrorClass(t *testing.T) {
	tests := []struct {
		errorClass       ErrorClass
		expectedInitial  time.Duration
		expectedAttempts int
	}{
		{ErrorClassRateLimit, 60 * time.Second, 3},
		{ErrorClassServer, 2 * time.Second, 3},
		{ErrorClassNetwork, 5 * time.Second, 3},
		{ErrorClassPermanent, 0, 1},
	}

	for _, tt := range tests {
		config := RetryConfigForErrorClass(tt.errorClass)
		if config.InitialBackoff != tt.expectedInitial || config.MaxAttempts != tt.expectedAttempts {
			t.Errorf("RetryConfigForErrorClass(%q) = %+v", tt.errorClass, config)
		}
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), zerolog.Nop(), fastRetry, func() error {
		calls++
		return fetchFailed(&generator.Error{Class: generator.ErrorClassStatus, StatusCode: 500})
	})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}
	if !errors.Is(err, cache.ErrFetchFailed) {
		t.Error("exhausted error should keep the fetch failure in its chain")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := func(ErrorClass) RetryConfig {
		return RetryConfig{MaxAttempts: 5, InitialBackoff: time.Minute, MaxBackoff: time.Minute, BackoffMultiplier: 1}
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := retryWithBackoff(ctx, zerolog.Nop(), slow, func() error {
		return fetchFailed(&generator.Error{Class: generator.ErrorClassNetwork})
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt the backoff")
	}
}
