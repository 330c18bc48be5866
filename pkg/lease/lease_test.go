package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis connects to a local Redis on DB 15, skipping when none is
// running. The integration suite covers the same paths in a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestNewRedis_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedis should panic with nil redis client")
		}
	}()
	NewRedis(nil, "", zerolog.Nop())
}

func TestNewRedis_DefaultPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	locker := NewRedis(client, "", zerolog.Nop())
	if locker.prefix != DefaultPrefix {
		t.Errorf("prefix = %q, want %q", locker.prefix, DefaultPrefix)
	}
}

func TestRedis_AcquireRelease(t *testing.T) {
	locker := NewRedis(setupTestRedis(t), "test:", zerolog.Nop())
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := locker.Acquire(ctx, "k", time.Minute); !errors.Is(err, ErrHeld) {
		t.Errorf("second Acquire() error = %v, want ErrHeld", err)
	}

	held, err := locker.Held(ctx, "k")
	if err != nil || !held {
		t.Errorf("Held() = %v, %v; want true", held, err)
	}

	release()
	release()

	held, err = locker.Held(ctx, "k")
	if err != nil || held {
		t.Errorf("Held() after release = %v, %v; want false", held, err)
	}

	if _, err := locker.Acquire(ctx, "k", time.Minute); err != nil {
		t.Errorf("Acquire() after release error = %v", err)
	}
}

func TestRedis_ReleaseDoesNotStealForeignLease(t *testing.T) {
	client := setupTestRedis(t)
	locker := NewRedis(client, "test:", zerolog.Nop())
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "k", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	// Lease expired; another owner takes it.
	if _, err := locker.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("re-Acquire() error = %v", err)
	}

	release()

	held, err := locker.Held(ctx, "k")
	if err != nil || !held {
		t.Errorf("stale release removed a foreign lease: held=%v err=%v", held, err)
	}
}
