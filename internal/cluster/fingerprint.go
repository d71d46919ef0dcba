package cluster

import "github.com/fthyco/simorg/internal/kernel"

// ComputeFingerprint derives the topology fingerprint of s: role count,
// dependency count, and global structural density over the full (not
// active-only) role and dependency sets.
func ComputeFingerprint(s kernel.OrgState) TopologyFingerprint {
	return TopologyFingerprint{
		RoleCount:       len(s.Roles),
		DependencyCount: len(s.Dependencies),
		Density:         kernel.GlobalDensity(len(s.Roles), len(s.Dependencies)),
	}
}

// ShouldRecompute reports whether curr differs from prev by at least
// one configured threshold, or whether prev is the zero value with no
// prior fingerprint recorded (signalled via hasPrev=false). Pure
// constraint-vector changes move none of the three fingerprint
// components and therefore never trigger recompute.
func ShouldRecompute(prev TopologyFingerprint, hasPrev bool, curr TopologyFingerprint, thresholds RecomputeThresholds) bool {
	if !hasPrev {
		return true
	}
	if abs(curr.RoleCount-prev.RoleCount) >= thresholds.RoleCountDelta {
		return true
	}
	if abs(curr.DependencyCount-prev.DependencyCount) >= thresholds.DependencyCountDelta {
		return true
	}
	if abs64(curr.Density-prev.Density) >= thresholds.DensityDelta {
		return true
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
