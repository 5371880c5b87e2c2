package reach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how long a shared estimate stays valid. Audience
// sizes move slowly, so estimates can be reused across requests.
const DefaultCacheTTL = time.Hour

// ErrCacheMiss is returned when no cached estimate exists for a key.
var ErrCacheMiss = errors.New("reach estimate not cached")

// cachedEstimate is the CBOR-encoded cache payload.
type cachedEstimate struct {
	Impressions int   `cbor:"impressions"`
	FetchedAt   int64 `cbor:"fetched_at"` // unix seconds
}

// CachedEstimator wraps an Estimator with a Redis-backed shared cache.
// Payloads are CBOR-encoded. Cache failures fall through to the inner
// estimator; the cache is an optimization, never a correctness dependency.
type CachedEstimator struct {
	inner  Estimator
	client *redis.Client
	ttl    time.Duration
}

// NewCachedEstimator creates a CachedEstimator with the given TTL.
// A zero ttl uses DefaultCacheTTL.
func NewCachedEstimator(inner Estimator, client *redis.Client, ttl time.Duration) *CachedEstimator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedEstimator{inner: inner, client: client, ttl: ttl}
}

// EstimateImpressions returns a cached estimate when one exists, otherwise
// calls the inner estimator and stores the result.
func (c *CachedEstimator) EstimateImpressions(ctx context.Context, skills []string, region string) (int, error) {
	key := cacheKey(skills, region)

	if n, err := c.get(ctx, key); err == nil {
		return n, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		slog.WarnContext(ctx, "reach cache read failed", "error", err)
	}

	n, err := c.inner.EstimateImpressions(ctx, skills, region)
	if err != nil {
		return 0, err
	}

	if err := c.put(ctx, key, n); err != nil {
		slog.WarnContext(ctx, "reach cache write failed", "error", err)
	}
	return n, nil
}

func (c *CachedEstimator) get(ctx context.Context, key string) (int, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return 0, ErrCacheMiss
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cached estimate: %w", err)
	}

	var entry cachedEstimate
	if err := cbor.Unmarshal(raw, &entry); err != nil {
		return 0, fmt.Errorf("failed to decode cached estimate: %w", err)
	}
	return entry.Impressions, nil
}

func (c *CachedEstimator) put(ctx context.Context, key string, impressions int) error {
	raw, err := cbor.Marshal(cachedEstimate{
		Impressions: impressions,
		FetchedAt:   time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode estimate: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store estimate: %w", err)
	}
	return nil
}

func cacheKey(skills []string, region string) string {
	return "reach:" + Key(skills, region)
}
