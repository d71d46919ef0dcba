// Package cluster implements the structural projection layer: partition
// of an organization's active-role dependency graph into clusters
// (connected components plus density-guided bipartition), department
// projection with boundary metrics, and a topology-fingerprint-gated
// recompute cache.
package cluster

import "github.com/fthyco/simorg/internal/kernel"

// Cluster is a set of role ids produced by deterministic partitioning of
// the active-role subgraph, carrying internal density and external edge
// count.
type Cluster struct {
	ID              string
	RoleIDs         []string
	InternalDensity int64
	ExternalEdges   int
}

// Department is a Cluster enriched with an optional semantic label,
// confidence, and lifecycle stage. Labelling is out of scope for this
// package — those fields exist for a downstream classification layer
// this repository does not implement — and are always left zero-valued
// here.
type Department struct {
	ID              string
	RoleIDs         []string
	InternalDensity int64
	Label           string
	Confidence      int64
	ScaleStage      kernel.LifecycleStage
	ExternalEdges   int
	BoundaryHeat    int64
}

// TopologyFingerprint summarizes a graph's size and density, used to
// decide whether a projection should re-cluster.
type TopologyFingerprint struct {
	RoleCount       int
	DependencyCount int
	Density         int64
}

// RecomputeThresholds configures should_recompute's sensitivity. Pure
// constraint-vector changes never move role/dependency count or
// density, so they never trigger a recompute regardless of threshold
// settings.
type RecomputeThresholds struct {
	RoleCountDelta       int
	DependencyCountDelta int
	DensityDelta         int64
}

// DefaultRecomputeThresholds returns the default sensitivity: role_count
// delta >= 1, dependency_count delta >= 1, density delta >= 0.05*SCALE.
func DefaultRecomputeThresholds() RecomputeThresholds {
	return RecomputeThresholds{
		RoleCountDelta:       1,
		DependencyCountDelta: 1,
		DensityDelta:         kernel.SCALE / 20,
	}
}
