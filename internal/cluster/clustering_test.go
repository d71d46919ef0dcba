package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fthyco/simorg/internal/kernel"
)

func activeRole(id string) kernel.Role {
	return kernel.Role{ID: id, Name: id, Purpose: "p", Responsibilities: []string{"work"}, Active: true}
}

func TestClusterRoles_SingleConnectedComponent(t *testing.T) {
	s := kernel.OrgState{
		Roles: map[string]kernel.Role{
			"a": activeRole("a"),
			"b": activeRole("b"),
		},
		Dependencies: []kernel.DependencyEdge{{FromRoleID: "a", ToRoleID: "b"}},
	}

	clusters := ClusterRoles(s)
	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, clusters[0].RoleIDs)
}

func TestClusterRoles_DisconnectedComponentsSplit(t *testing.T) {
	s := kernel.OrgState{
		Roles: map[string]kernel.Role{
			"a": activeRole("a"),
			"b": activeRole("b"),
			"c": activeRole("c"),
			"d": activeRole("d"),
		},
		Dependencies: []kernel.DependencyEdge{
			{FromRoleID: "a", ToRoleID: "b"},
			{FromRoleID: "c", ToRoleID: "d"},
		},
	}

	clusters := ClusterRoles(s)
	require.Len(t, clusters, 2)
}

func TestClusterRoles_IgnoresInactiveRoles(t *testing.T) {
	inactive := activeRole("c")
	inactive.Active = false
	s := kernel.OrgState{
		Roles: map[string]kernel.Role{
			"a": activeRole("a"),
			"b": activeRole("b"),
			"c": inactive,
		},
		Dependencies: []kernel.DependencyEdge{
			{FromRoleID: "a", ToRoleID: "b"},
			{FromRoleID: "b", ToRoleID: "c"},
		},
	}

	clusters := ClusterRoles(s)
	var seen []string
	for _, c := range clusters {
		seen = append(seen, c.RoleIDs...)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, seen, "inactive role c must never appear in a cluster")
}

func TestClusterRoles_IsolatedRoleFormsItsOwnCluster(t *testing.T) {
	s := kernel.OrgState{
		Roles: map[string]kernel.Role{
			"solo": activeRole("solo"),
		},
	}

	clusters := ClusterRoles(s)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"solo"}, clusters[0].RoleIDs)
}

func TestClusterRoles_Deterministic(t *testing.T) {
	roles := map[string]kernel.Role{}
	var deps []kernel.DependencyEdge
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		roles[id] = activeRole(id)
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if (i+j)%2 == 0 {
				deps = append(deps, kernel.DependencyEdge{FromRoleID: ids[i], ToRoleID: ids[j]})
			}
		}
	}
	s := kernel.OrgState{Roles: roles, Dependencies: deps}

	first := ClusterRoles(s)
	second := ClusterRoles(s)
	assert.Equal(t, CanonicalClusterHash(first), CanonicalClusterHash(second))
}

func TestCanonicalClusterHash_OrderIndependent(t *testing.T) {
	a := []Cluster{
		{ID: "x", RoleIDs: []string{"a", "b"}, InternalDensity: 100, ExternalEdges: 1},
		{ID: "y", RoleIDs: []string{"c"}, InternalDensity: 0, ExternalEdges: 1},
	}
	b := []Cluster{a[1], a[0]}

	assert.Equal(t, CanonicalClusterHash(a), CanonicalClusterHash(b))
}

func TestCanonicalClusterHash_DiffersOnContentChange(t *testing.T) {
	a := []Cluster{{ID: "x", RoleIDs: []string{"a", "b"}, InternalDensity: 100, ExternalEdges: 1}}
	b := []Cluster{{ID: "x", RoleIDs: []string{"a", "b"}, InternalDensity: 200, ExternalEdges: 1}}

	assert.NotEqual(t, CanonicalClusterHash(a), CanonicalClusterHash(b))
}
