package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "aurum/pkg/domain"
)

var (
	eligibilityCheckDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aurum_eligibility_cache_check_duration_ms",
		Help:    "Latency of eligibility cache lookups in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})
)

const eligibleKeyPrefix = "elig:"

// RedisEligibilityCache caches positive eligibility verdicts. Only positive
// verdicts are cached: a stale "eligible" is bounded by the TTL, while a stale
// "not eligible" could lock a holder out until expiry. Revocation and
// supersession invalidate explicitly.
type RedisEligibilityCache struct {
	client *redis.Client
}

func NewRedisEligibilityCache(client *redis.Client) *RedisEligibilityCache {
	return &RedisEligibilityCache{client: client}
}

// MarkEligible records a positive verdict for at most ttl.
func (c *RedisEligibilityCache) MarkEligible(ctx context.Context, identity id.Identity, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, eligibleKeyPrefix+string(identity), "1", ttl).Err()
}

// IsEligible returns (verdict, cached). A miss means the caller must consult
// the registry.
func (c *RedisEligibilityCache) IsEligible(ctx context.Context, identity id.Identity) (bool, bool, error) {
	start := time.Now()
	defer func() {
		eligibilityCheckDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	_, err := c.client.Get(ctx, eligibleKeyPrefix+string(identity)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, true, nil
}

// Invalidate drops any cached verdict for the identity.
func (c *RedisEligibilityCache) Invalidate(ctx context.Context, identity id.Identity) error {
	return c.client.Del(ctx, eligibleKeyPrefix+string(identity)).Err()
}
