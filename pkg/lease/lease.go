// Package lease provides short-lived, per-key exclusive leases in Redis so
// that several server processes do not call the generator for the same
// cache key at once.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrHeld is returned by Acquire when another owner holds the lease.
var ErrHeld = errors.New("lease held by another owner")

// DefaultPrefix namespaces lease keys in Redis.
const DefaultPrefix = "history:lease:"

var leaseAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "history_lease_acquisitions_total",
	Help: "Total lease acquisition attempts by result",
}, []string{"result"}) // "acquired", "held", "error"

// releaseScript deletes the key only while it still carries our token, so an
// expired lease re-taken by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis hands out leases stored as SET NX PX keys.
type Redis struct {
	redis  *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedis creates a Redis-backed locker.
func NewRedis(redisClient *redis.Client, prefix string, logger zerolog.Logger) *Redis {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{
		redis:  redisClient,
		prefix: prefix,
		logger: logger,
	}
}

// Acquire takes the lease for key for at most ttl. The returned release
// function is safe to call more than once.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	ok, err := r.redis.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		leaseAcquisitions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		leaseAcquisitions.WithLabelValues("held").Inc()
		return nil, ErrHeld
	}
	leaseAcquisitions.WithLabelValues("acquired").Inc()
	r.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("Lease acquired")

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		// Release must outlive a cancelled request context.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.redis, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("Failed to release lease")
		}
	}
	return release, nil
}

// Held reports whether any owner currently holds the lease for key.
func (r *Redis) Held(ctx context.Context, key string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}
