package cluster

import (
	"fmt"
	"sort"

	"github.com/fthyco/simorg/internal/kernel"
)

// ProjectDepartments builds one Department per Cluster in sorted order
// (ids dept_0, dept_1, …), computing external-edge counts and boundary
// heat from s.Dependencies. Only edges whose two endpoints both belong to
// some department are counted; an edge touching a role outside every
// cluster (such as an inactive role) is skipped. It refuses to emit a
// view where any active role is unassigned or any department is empty.
func ProjectDepartments(s kernel.OrgState, clusters []Cluster) ([]Department, error) {
	if len(clusters) == 0 {
		activeCount := 0
		for _, r := range s.Roles {
			if r.Active {
				activeCount++
			}
		}
		if activeCount > 0 {
			return nil, fmt.Errorf("department projection: %d active roles unassigned", activeCount)
		}
		return nil, nil
	}

	roleToDept := make(map[string]int, len(s.Roles))
	departments := make([]Department, len(clusters))
	for i, c := range clusters {
		if len(c.RoleIDs) == 0 {
			return nil, fmt.Errorf("department projection: cluster %s is empty", c.ID)
		}
		departments[i] = Department{
			ID:              fmt.Sprintf("dept_%d", i),
			RoleIDs:         append([]string(nil), c.RoleIDs...),
			InternalDensity: c.InternalDensity,
		}
		for _, id := range c.RoleIDs {
			roleToDept[id] = i
		}
	}

	for id, r := range s.Roles {
		if r.Active {
			if _, ok := roleToDept[id]; !ok {
				return nil, fmt.Errorf("department projection: active role %q unassigned", id)
			}
		}
	}

	boundaryEdges := make([]int, len(departments))
	totalIncident := make([]int, len(departments))
	for _, e := range s.Dependencies {
		fromDept, fromOK := roleToDept[e.FromRoleID]
		toDept, toOK := roleToDept[e.ToRoleID]
		if !fromOK || !toOK {
			continue
		}
		totalIncident[fromDept]++
		totalIncident[toDept]++
		if fromDept != toDept {
			boundaryEdges[fromDept]++
			boundaryEdges[toDept]++
		}
	}

	for i := range departments {
		departments[i].ExternalEdges = boundaryEdges[i]
		if totalIncident[i] == 0 {
			departments[i].BoundaryHeat = 0
		} else {
			departments[i].BoundaryHeat = int64(boundaryEdges[i]) * kernel.SCALE / int64(totalIncident[i])
		}
	}

	return departments, nil
}

// InterDepartmentEdge is an ordered pair of distinct department ids with
// at least one directed dependency edge crossing between them.
type InterDepartmentEdge struct {
	FromDept string
	ToDept   string
}

// InterDepartmentEdges returns the set of ordered department-id pairs
// with fromDept != toDept, derived from s.Dependencies and the role→dept
// assignment implied by departments, sorted for deterministic output.
func InterDepartmentEdges(s kernel.OrgState, departments []Department) []InterDepartmentEdge {
	roleToDept := make(map[string]string, len(s.Roles))
	for _, d := range departments {
		for _, id := range d.RoleIDs {
			roleToDept[id] = d.ID
		}
	}
	seen := make(map[InterDepartmentEdge]bool)
	for _, e := range s.Dependencies {
		fromDept, fromOK := roleToDept[e.FromRoleID]
		toDept, toOK := roleToDept[e.ToRoleID]
		if !fromOK || !toOK || fromDept == toDept {
			continue
		}
		seen[InterDepartmentEdge{FromDept: fromDept, ToDept: toDept}] = true
	}
	out := make([]InterDepartmentEdge, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromDept != out[j].FromDept {
			return out[i].FromDept < out[j].FromDept
		}
		return out[i].ToDept < out[j].ToDept
	})
	return out
}
