package kernel

import (
	"fmt"
	"sort"

	kerrors "github.com/fthyco/simorg/infrastructure/errors"
)

// InvariantRule names one of the seven ordered structural checks.
const (
	RuleRoleIDFormat         = "role_id_format"
	RuleDependencyRefs       = "dependency_refs"
	RuleOrphanedOutput       = "orphaned_output"
	RuleDuplicateRoleIDs     = "duplicate_role_ids"
	RuleNoActiveRoles        = "no_active_roles"
	RuleEmptyResponsibilities = "empty_responsibilities"
	RuleCriticalCycle        = "critical_cycle"
)

// ValidateInvariants runs the ordered battery of seven invariants and
// returns the first violation encountered, or nil if the state is
// well-formed. Later checks assume earlier ones passed (dependency_refs
// assumes role ids are well-formed, for instance), so order is fixed.
func ValidateInvariants(s OrgState) error {
	roleIDs := make([]string, 0, len(s.Roles))
	for id := range s.Roles {
		roleIDs = append(roleIDs, id)
	}
	sort.Strings(roleIDs)

	// 7. role_id_format — checked first since later checks key off ids.
	for _, id := range roleIDs {
		if !ValidRoleID(id) {
			return kerrors.Invariant(RuleRoleIDFormat, fmt.Sprintf("role id %q does not match the id pattern", id))
		}
	}

	// 3. duplicate_role_ids — a Go map cannot carry duplicate keys, so
	// this check exists for callers constructing OrgState from a
	// non-map source (e.g. the snapshot decoder's intermediate form)
	// before roles are loaded into the map; by the time a map exists
	// duplicates are structurally impossible, documented here for
	// parity with the rule ordering.
	seen := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		if seen[id] {
			return kerrors.Invariant(RuleDuplicateRoleIDs, fmt.Sprintf("duplicate role id %q", id))
		}
		seen[id] = true
	}

	// 1. dependency_refs — every edge endpoint exists.
	for _, e := range s.Dependencies {
		if _, ok := s.Roles[e.FromRoleID]; !ok {
			return kerrors.Invariant(RuleDependencyRefs, fmt.Sprintf("dependency references unknown role %q", e.FromRoleID))
		}
		if _, ok := s.Roles[e.ToRoleID]; !ok {
			return kerrors.Invariant(RuleDependencyRefs, fmt.Sprintf("dependency references unknown role %q", e.ToRoleID))
		}
	}

	// 2. orphaned_output — every produced_output is consumed as a
	// required_input by some role.
	allInputs := make(map[string]bool)
	for _, id := range roleIDs {
		for _, in := range s.Roles[id].RequiredInputs {
			allInputs[in] = true
		}
	}
	for _, id := range roleIDs {
		for _, out := range s.Roles[id].ProducedOutputs {
			if !allInputs[out] {
				return kerrors.Invariant(RuleOrphanedOutput, fmt.Sprintf("output %q produced by %q is never consumed", out, id))
			}
		}
	}

	// 4. no_active_roles — if the role set is non-empty, >=1 active.
	if len(roleIDs) > 0 {
		anyActive := false
		for _, id := range roleIDs {
			if s.Roles[id].Active {
				anyActive = true
				break
			}
		}
		if !anyActive {
			return kerrors.Invariant(RuleNoActiveRoles, "no active roles remain")
		}
	}

	// 5. empty_responsibilities — every role has >=1 responsibility.
	for _, id := range roleIDs {
		if len(s.Roles[id].Responsibilities) == 0 {
			return kerrors.Invariant(RuleEmptyResponsibilities, fmt.Sprintf("role %q has no responsibilities", id))
		}
	}

	// 6. critical_cycle — no cycle composed entirely of critical edges.
	witness := DetectCriticalCycles(roleIDs, s.Dependencies)
	if witness.Found {
		return kerrors.Invariant(RuleCriticalCycle, fmt.Sprintf("critical cycle detected through role %q", witness.Role))
	}

	return nil
}
