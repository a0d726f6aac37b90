package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sharesphere/sharesphere/pkg/observability"
)

// SnapshotCache caches user permission snapshots in Redis. Invalidation
// after every permission-affecting mutation is the primary freshness
// mechanism; the TTL only bounds staleness if an invalidation is lost.
type SnapshotCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewSnapshotCache wraps an existing Redis client. metrics may be nil.
func NewSnapshotCache(client *redis.Client, ttl time.Duration, metrics *observability.Metrics) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl, metrics: metrics}
}

// NewRedisClient connects to Redis from a URL, verifying the connection.
func NewRedisClient(ctx context.Context, url, password string, db, poolSize int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DB = db
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func snapshotKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// Get returns the cached snapshot, or (nil, nil) on a miss. A corrupt
// entry is dropped and treated as a miss.
func (c *SnapshotCache) Get(ctx context.Context, userID int64) (*User, error) {
	data, err := c.client.Get(ctx, snapshotKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		if c.metrics != nil {
			c.metrics.SnapshotCacheMissesTotal.Inc()
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot cache: %w", err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		c.client.Del(ctx, snapshotKey(userID))
		if c.metrics != nil {
			c.metrics.SnapshotCacheMissesTotal.Inc()
		}
		return nil, nil
	}

	if c.metrics != nil {
		c.metrics.SnapshotCacheHitsTotal.Inc()
	}
	return &user, nil
}

// Set stores the snapshot with the configured TTL.
func (c *SnapshotCache) Set(ctx context.Context, user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey(user.UserID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot so the next read rebuilds it from
// the store.
func (c *SnapshotCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, snapshotKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}
	if c.metrics != nil {
		c.metrics.SnapshotInvalidations.Inc()
	}
	return nil
}
