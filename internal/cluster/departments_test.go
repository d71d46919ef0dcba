package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fthyco/simorg/internal/kernel"
)

func TestProjectDepartments_BasicAssignment(t *testing.T) {
	s := kernel.OrgState{
		Roles: map[string]kernel.Role{
			"a": activeRole("a"),
			"b": activeRole("b"),
			"c": activeRole("c"),
		},
		Dependencies: []kernel.DependencyEdge{
			{FromRoleID: "a", ToRoleID: "b"},
			{FromRoleID: "c", ToRoleID: "a"},
		},
	}
	clusters := []Cluster{
		{ID: "cl0", RoleIDs: []string{"a", "b"}, InternalDensity: 5000},
		{ID: "cl1", RoleIDs: []string{"c"}, InternalDensity: 0},
	}

	depts, err := ProjectDepartments(s, clusters)
	require.NoError(t, err)
	require.Len(t, depts, 2)
	assert.Equal(t, "dept_0", depts[0].ID)
	assert.Equal(t, "dept_1", depts[1].ID)
	assert.Equal(t, 1, depts[0].ExternalEdges, "the c->a edge crosses into dept_0")
	assert.Equal(t, 1, depts[1].ExternalEdges)
}

func TestProjectDepartments_NoClustersNoActiveRoles(t *testing.T) {
	depts, err := ProjectDepartments(kernel.OrgState{}, nil)
	require.NoError(t, err)
	assert.Nil(t, depts)
}

func TestProjectDepartments_ErrorsOnUnassignedActiveRole(t *testing.T) {
	s := kernel.OrgState{
		Roles: map[string]kernel.Role{
			"a": activeRole("a"),
			"b": activeRole("b"),
		},
	}
	clusters := []Cluster{{ID: "cl0", RoleIDs: []string{"a"}}}

	_, err := ProjectDepartments(s, clusters)
	require.Error(t, err)
}

func TestProjectDepartments_ErrorsOnEmptyCluster(t *testing.T) {
	s := kernel.OrgState{Roles: map[string]kernel.Role{"a": activeRole("a")}}
	clusters := []Cluster{{ID: "cl0", RoleIDs: nil}}

	_, err := ProjectDepartments(s, clusters)
	require.Error(t, err)
}

func TestProjectDepartments_BoundaryHeatZeroWhenIsolated(t *testing.T) {
	s := kernel.OrgState{Roles: map[string]kernel.Role{"a": activeRole("a")}}
	clusters := []Cluster{{ID: "cl0", RoleIDs: []string{"a"}}}

	depts, err := ProjectDepartments(s, clusters)
	require.NoError(t, err)
	assert.Equal(t, int64(0), depts[0].BoundaryHeat)
}

func TestInterDepartmentEdges_ExcludesIntraDepartmentEdges(t *testing.T) {
	s := kernel.OrgState{
		Roles: map[string]kernel.Role{
			"a": activeRole("a"),
			"b": activeRole("b"),
			"c": activeRole("c"),
		},
		Dependencies: []kernel.DependencyEdge{
			{FromRoleID: "a", ToRoleID: "b"},
			{FromRoleID: "b", ToRoleID: "c"},
		},
	}
	departments := []Department{
		{ID: "dept_0", RoleIDs: []string{"a", "b"}},
		{ID: "dept_1", RoleIDs: []string{"c"}},
	}

	edges := InterDepartmentEdges(s, departments)
	require.Len(t, edges, 1)
	assert.Equal(t, InterDepartmentEdge{FromDept: "dept_0", ToDept: "dept_1"}, edges[0])
}

func TestInterDepartmentEdges_DeduplicatesAndSorts(t *testing.T) {
	s := kernel.OrgState{
		Roles: map[string]kernel.Role{
			"a": activeRole("a"),
			"b": activeRole("b"),
		},
		Dependencies: []kernel.DependencyEdge{
			{FromRoleID: "a", ToRoleID: "b"},
			{FromRoleID: "a", ToRoleID: "b"},
		},
	}
	departments := []Department{
		{ID: "dept_0", RoleIDs: []string{"a"}},
		{ID: "dept_1", RoleIDs: []string{"b"}},
	}

	edges := InterDepartmentEdges(s, departments)
	assert.Len(t, edges, 1)
}
