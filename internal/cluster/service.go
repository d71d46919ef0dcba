package cluster

import (
	"context"

	"github.com/fthyco/simorg/internal/kernel"
)

// ProjectionService gates recomputation of a stream's cluster set behind
// its topology fingerprint, per-stream via a FingerprintCache. It never
// writes back to the OrgState it is given; projection is a pure
// read-only derivation.
type ProjectionService struct {
	cache      FingerprintCache
	thresholds RecomputeThresholds
}

// NewProjectionService constructs a ProjectionService over the given
// cache with the default recompute thresholds.
func NewProjectionService(cache FingerprintCache) *ProjectionService {
	return &ProjectionService{cache: cache, thresholds: DefaultRecomputeThresholds()}
}

// WithThresholds overrides the recompute sensitivity.
func (p *ProjectionService) WithThresholds(t RecomputeThresholds) *ProjectionService {
	p.thresholds = t
	return p
}

// Recompute returns the current cluster set for streamKey's state s,
// recomputing only if the topology fingerprint has moved by at least one
// configured threshold since the last cached computation (or if there is
// no prior entry).
func (p *ProjectionService) Recompute(ctx context.Context, streamKey string, s kernel.OrgState) []Cluster {
	curr := ComputeFingerprint(s)
	cached, hasPrev := p.cache.Get(ctx, streamKey)

	if !ShouldRecompute(cached.Fingerprint, hasPrev, curr, p.thresholds) {
		return cached.Clusters
	}

	clusters := ClusterRoles(s)
	p.cache.Set(ctx, streamKey, CachedProjection{Fingerprint: curr, Clusters: clusters})
	return clusters
}
