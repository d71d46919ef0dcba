package cluster

import (
	"context"
	"time"

	infracache "github.com/fthyco/simorg/infrastructure/cache"
)

// CachedProjection is the unit stored by a FingerprintCache: the
// fingerprint that produced a cluster set, paired with the set itself.
// Swapping cache implementations never changes clustering output — the
// cache only gates whether Recompute runs, never its result.
type CachedProjection struct {
	Fingerprint TopologyFingerprint
	Clusters    []Cluster
}

// FingerprintCache stores the last computed projection for a stream,
// keyed by an arbitrary caller-chosen stream key (e.g. an engine
// instance id). Implementations never substitute stale data for a
// fingerprint mismatch; they only decide whether Recompute is skipped.
type FingerprintCache interface {
	Get(ctx context.Context, streamKey string) (CachedProjection, bool)
	Set(ctx context.Context, streamKey string, projection CachedProjection)
}

// MemoryFingerprintCache is the in-process default FingerprintCache,
// backed by infrastructure/cache's generic versioned TTL cache.
type MemoryFingerprintCache struct {
	ttl *infracache.TTLCache
}

// NewMemoryFingerprintCache constructs an in-process cache with the
// given per-entry TTL. A TTL of 0 selects infrastructure/cache's default
// of 5 minutes; entries do not live indefinitely.
func NewMemoryFingerprintCache(ttl time.Duration) *MemoryFingerprintCache {
	return &MemoryFingerprintCache{ttl: infracache.NewTTLCache(ttl)}
}

// Get implements FingerprintCache.
func (c *MemoryFingerprintCache) Get(ctx context.Context, streamKey string) (CachedProjection, bool) {
	v, ok := c.ttl.Get(ctx, streamKey)
	if !ok {
		return CachedProjection{}, false
	}
	proj, ok := v.(CachedProjection)
	if !ok {
		return CachedProjection{}, false
	}
	return proj, true
}

// Set implements FingerprintCache.
func (c *MemoryFingerprintCache) Set(ctx context.Context, streamKey string, projection CachedProjection) {
	c.ttl.Set(ctx, streamKey, projection)
}
