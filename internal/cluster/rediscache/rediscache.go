// Package rediscache is an optional shared-process FingerprintCache
// backend: multiple engine hosts behind the same stream key can share one
// projection cache instead of each holding its own in-memory copy.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fthyco/simorg/internal/cluster"
)

const keyPrefix = "simorg:projection:"

// Cache is a cluster.FingerprintCache backed by Redis. Entries are
// JSON-encoded CachedProjection values stored under keyPrefix+streamKey
// with a fixed TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a Cache from a parsed redis URL (e.g.
// "redis://localhost:6379/0"). ttl of 0 disables expiry.
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Cache{client: redis.NewClient(opt), ttl: ttl}, nil
}

// NewFromClient wraps an already-constructed *redis.Client, letting
// callers share a connection pool across multiple caches.
func NewFromClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Ping verifies connectivity, mirroring the teacher's redis health check.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get implements cluster.FingerprintCache.
func (c *Cache) Get(ctx context.Context, streamKey string) (cluster.CachedProjection, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+streamKey).Bytes()
	if err != nil {
		return cluster.CachedProjection{}, false
	}
	var proj cluster.CachedProjection
	if err := json.Unmarshal(raw, &proj); err != nil {
		return cluster.CachedProjection{}, false
	}
	return proj, true
}

// Set implements cluster.FingerprintCache.
func (c *Cache) Set(ctx context.Context, streamKey string, projection cluster.CachedProjection) {
	raw, err := json.Marshal(projection)
	if err != nil {
		return
	}
	c.client.Set(ctx, keyPrefix+streamKey, raw, c.ttl)
}
