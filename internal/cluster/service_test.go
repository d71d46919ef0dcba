package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fthyco/simorg/internal/kernel"
)

func twoRoleState(edgeCount int) kernel.OrgState {
	deps := make([]kernel.DependencyEdge, 0, edgeCount)
	for i := 0; i < edgeCount; i++ {
		deps = append(deps, kernel.DependencyEdge{FromRoleID: "a", ToRoleID: "b"})
	}
	return kernel.OrgState{
		Roles: map[string]kernel.Role{
			"a": activeRole("a"),
			"b": activeRole("b"),
		},
		Dependencies: deps,
	}
}

func TestProjectionService_RecomputesOnFirstCall(t *testing.T) {
	svc := NewProjectionService(NewMemoryFingerprintCache(0))
	clusters := svc.Recompute(context.Background(), "stream-1", twoRoleState(1))
	assert.NotEmpty(t, clusters)
}

func TestProjectionService_SkipsRecomputeBelowThreshold(t *testing.T) {
	cache := NewMemoryFingerprintCache(0)
	svc := NewProjectionService(cache)
	ctx := context.Background()

	first := svc.Recompute(ctx, "stream-1", twoRoleState(1))

	// A state with different role ids but the same role count, dependency
	// count and density has an identical fingerprint, so the cached
	// clusters (still naming a and b) must be returned instead of x and y.
	relabeled := kernel.OrgState{
		Roles: map[string]kernel.Role{
			"x": activeRole("x"),
			"y": activeRole("y"),
		},
		Dependencies: []kernel.DependencyEdge{{FromRoleID: "x", ToRoleID: "y"}},
	}
	second := svc.Recompute(ctx, "stream-1", relabeled)

	assert.Equal(t, CanonicalClusterHash(first), CanonicalClusterHash(second))
}

func TestProjectionService_RecomputesWhenRoleCountChanges(t *testing.T) {
	cache := NewMemoryFingerprintCache(0)
	svc := NewProjectionService(cache)
	ctx := context.Background()

	before := twoRoleState(1)
	svc.Recompute(ctx, "stream-1", before)

	after := twoRoleState(1)
	after.Roles["c"] = activeRole("c")

	clusters := svc.Recompute(ctx, "stream-1", after)

	var total int
	for _, c := range clusters {
		total += len(c.RoleIDs)
	}
	assert.Equal(t, 3, total, "newly added role must appear once the fingerprint moves past threshold")
}

func TestProjectionService_IndependentStreamKeysDoNotShareCache(t *testing.T) {
	cache := NewMemoryFingerprintCache(0)
	svc := NewProjectionService(cache)
	ctx := context.Background()

	a := svc.Recompute(ctx, "stream-a", twoRoleState(1))
	b := svc.Recompute(ctx, "stream-b", twoRoleState(0))

	require.NotEqual(t, CanonicalClusterHash(a), CanonicalClusterHash(b))
}

func TestShouldRecompute_NoPriorEntryAlwaysRecomputes(t *testing.T) {
	curr := ComputeFingerprint(twoRoleState(1))
	assert.True(t, ShouldRecompute(TopologyFingerprint{}, false, curr, DefaultRecomputeThresholds()))
}

func TestShouldRecompute_IdenticalFingerprintSkipsRecompute(t *testing.T) {
	curr := ComputeFingerprint(twoRoleState(1))
	assert.False(t, ShouldRecompute(curr, true, curr, DefaultRecomputeThresholds()))
}

func TestShouldRecompute_RoleCountDeltaTriggers(t *testing.T) {
	prev := ComputeFingerprint(twoRoleState(1))
	curr := prev
	curr.RoleCount++
	assert.True(t, ShouldRecompute(prev, true, curr, DefaultRecomputeThresholds()))
}
