package kernel

import "sort"

// Diagnostics is a pure, idempotent health summary derived from a state.
type Diagnostics struct {
	TotalRoles           int
	ActiveRoles          int
	GlobalDensity        int64
	StructuralDebt       int64
	IsolatedRoleIDs      []string
	GovernanceEdgeCount  int
	Warnings             []string
}

// HighFragilityDensityThreshold is 0.7*SCALE.
const HighFragilityDensityThreshold = 7 * SCALE / 10

// StructuralDebtWarningThreshold is the debt level above which a warning
// fires.
const StructuralDebtWarningThreshold int64 = 5

// ComputeDiagnostics derives a Diagnostics value from s. Pure and
// idempotent; never mutates s.
func ComputeDiagnostics(s OrgState) Diagnostics {
	roleIDs := make([]string, 0, len(s.Roles))
	for id := range s.Roles {
		roleIDs = append(roleIDs, id)
	}
	sort.Strings(roleIDs)

	activeCount := 0
	for _, id := range roleIDs {
		if s.Roles[id].Active {
			activeCount++
		}
	}

	governanceCount := 0
	for _, e := range s.Dependencies {
		if e.Type == DependencyGovernance {
			governanceCount++
		}
	}

	density := GlobalDensity(len(roleIDs), len(s.Dependencies))
	isolated := IsolatedRoles(roleIDs, s.Dependencies)

	var warnings []string
	if density > HighFragilityDensityThreshold {
		warnings = append(warnings, "high fragility: global density exceeds 0.7")
	}
	if s.StructuralDebt > StructuralDebtWarningThreshold {
		warnings = append(warnings, "structural debt exceeds 5")
	}
	if len(isolated) > 0 {
		warnings = append(warnings, "isolated roles present")
	}
	if activeCount < len(roleIDs) {
		warnings = append(warnings, "inactive roles present")
	}

	return Diagnostics{
		TotalRoles:          len(roleIDs),
		ActiveRoles:         activeCount,
		GlobalDensity:       density,
		StructuralDebt:      s.StructuralDebt,
		IsolatedRoleIDs:     isolated,
		GovernanceEdgeCount: governanceCount,
		Warnings:            warnings,
	}
}
