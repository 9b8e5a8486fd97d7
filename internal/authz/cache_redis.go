package authz

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "authz:subject:"

// RedisCache backs the resolution cache with Redis, making cached
// snapshots shareable across processes. Backend failures degrade to
// misses and are logged, never surfaced.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache builds a RedisCache with the given entry TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached snapshot for a subject, ok=false on miss.
func (c *RedisCache) Get(ctx context.Context, subjectID string) (Snapshot, bool) {
	payload, err := c.client.Get(ctx, redisKeyPrefix+subjectID).Bytes()
	if err == redis.Nil {
		return Snapshot{}, false
	}
	if err != nil {
		c.logger.Warn("authz cache get", slog.String("subject", subjectID), slog.Any("error", err))
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		c.logger.Warn("authz cache decode", slog.String("subject", subjectID), slog.Any("error", err))
		return Snapshot{}, false
	}
	return snap, true
}

// Set stores a snapshot under the configured TTL.
func (c *RedisCache) Set(ctx context.Context, subjectID string, snap Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		c.logger.Warn("authz cache encode", slog.String("subject", subjectID), slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+subjectID, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("authz cache set", slog.String("subject", subjectID), slog.Any("error", err))
	}
}

// Invalidate removes a subject's entry unconditionally.
func (c *RedisCache) Invalidate(ctx context.Context, subjectID string) {
	if err := c.client.Del(ctx, redisKeyPrefix+subjectID).Err(); err != nil {
		c.logger.Warn("authz cache invalidate", slog.String("subject", subjectID), slog.Any("error", err))
	}
}
