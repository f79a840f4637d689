package geofence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SampleGuard decides whether a location sample may be evaluated, based on
// the last sample already processed for the device. It protects against
// late-arriving older samples flipping a state back.
type SampleGuard interface {
	// Admit reports whether a sample with this timestamp may be processed
	Admit(ctx context.Context, deviceID string, occurredAt time.Time) (bool, error)
	// Commit records the timestamp of a successfully processed sample
	Commit(ctx context.Context, deviceID string, occurredAt time.Time) error
}

// RedisSampleGuard stores the last processed sample timestamp per device in
// Redis. Entries expire so devices that go quiet do not accumulate keys.
type RedisSampleGuard struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisSampleGuard creates a Redis-backed sample guard
func NewRedisSampleGuard(redisClient *redis.Client, ttl time.Duration) *RedisSampleGuard {
	return &RedisSampleGuard{redis: redisClient, ttl: ttl}
}

func guardKey(deviceID string) string {
	return fmt.Sprintf("sample_guard:%s", deviceID)
}

// Admit admits a sample when no timestamp is recorded for the device or when
// the sample is strictly newer than the recorded one. Duplicates (equal
// timestamps) are rejected.
func (g *RedisSampleGuard) Admit(ctx context.Context, deviceID string, occurredAt time.Time) (bool, error) {
	data, err := g.redis.Get(ctx, guardKey(deviceID)).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get last sample timestamp: %w", err)
	}

	last, err := time.Parse(time.RFC3339Nano, data)
	if err != nil {
		return false, fmt.Errorf("failed to parse last sample timestamp: %w", err)
	}

	return occurredAt.After(last), nil
}

// Commit records the sample timestamp with the guard TTL
func (g *RedisSampleGuard) Commit(ctx context.Context, deviceID string, occurredAt time.Time) error {
	value := occurredAt.UTC().Format(time.RFC3339Nano)
	if err := g.redis.Set(ctx, guardKey(deviceID), value, g.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set last sample timestamp: %w", err)
	}
	return nil
}
