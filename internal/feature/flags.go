// Package feature exposes runtime feature gates consulted by the decision
// engines. Gates are read-only here; toggling happens out of band.
package feature

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Source answers feature-gate questions for a sponsor.
type Source interface {
	// BoostAvailable reports whether boost purchasing is enabled for the
	// sponsor. When unavailable, boost stages are skipped entirely.
	BoostAvailable(ctx context.Context, sponsorID string) (bool, error)
}

// StaticSource returns a fixed answer for every sponsor. Used when the gate
// is configured globally rather than per sponsor.
type StaticSource bool

func (s StaticSource) BoostAvailable(ctx context.Context, sponsorID string) (bool, error) {
	return bool(s), nil
}

// RedisSource reads per-sponsor gates from Redis. A missing key falls back
// to the configured default, so rollout can start from either direction.
type RedisSource struct {
	client   *redis.Client
	fallback bool
}

// NewRedisSource creates a RedisSource with the given fallback for sponsors
// that have no explicit gate set.
func NewRedisSource(client *redis.Client, fallback bool) *RedisSource {
	return &RedisSource{client: client, fallback: fallback}
}

func boostKey(sponsorID string) string {
	return "feature:boost:" + sponsorID
}

// BoostAvailable reads the sponsor's boost gate. Redis failures degrade to
// the fallback value with a warning rather than failing the classification.
func (s *RedisSource) BoostAvailable(ctx context.Context, sponsorID string) (bool, error) {
	val, err := s.client.Get(ctx, boostKey(sponsorID)).Result()
	if err == redis.Nil {
		return s.fallback, nil
	}
	if err != nil {
		slog.WarnContext(ctx, "feature gate read failed",
			slog.String("sponsor_id", sponsorID),
			slog.String("error", err.Error()))
		return s.fallback, nil
	}
	return val == "1" || val == "true", nil
}
