package kernel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() OrgState {
	return OrgState{
		Roles: map[string]Role{
			"ops":  roleFixture("ops", []string{"execution"}, []string{"plan"}, []string{"report"}, true),
			"mgmt": roleFixture("mgmt", []string{"oversight"}, []string{"report"}, []string{"plan"}, true),
		},
		Dependencies: []DependencyEdge{
			{FromRoleID: "ops", ToRoleID: "mgmt", Type: DependencyOperational, Critical: false},
			{FromRoleID: "mgmt", ToRoleID: "ops", Type: DependencyGovernance, Critical: true},
		},
		ConstraintVector: ConstraintVector{Capital: DefaultConstraintValue, Talent: DefaultConstraintValue, Time: DefaultConstraintValue, PoliticalCost: DefaultConstraintValue},
		Constants:        DefaultDomainConstants(),
		ScaleStage:       StageGrowth,
		StructuralDebt:   3,
	}
}

func TestCanonicalHash_Deterministic(t *testing.T) {
	s := sampleState()
	first := CanonicalHash(s)
	second := CanonicalHash(s)
	assert.Equal(t, first, second)
}

// Map iteration order in Go is randomized per-process; canonical
// rendering must sort roles and dependencies so the hash never depends
// on it.
func TestCanonicalHash_IndependentOfConstructionOrder(t *testing.T) {
	a := sampleState()

	b := OrgState{
		Roles:            map[string]Role{},
		Dependencies:     append([]DependencyEdge(nil), a.Dependencies...),
		ConstraintVector: a.ConstraintVector,
		Constants:        a.Constants,
		ScaleStage:       a.ScaleStage,
		StructuralDebt:   a.StructuralDebt,
	}
	// populate in reverse key order from a's natural map iteration
	b.Roles["mgmt"] = a.Roles["mgmt"]
	b.Roles["ops"] = a.Roles["ops"]

	assert.Equal(t, CanonicalHash(a), CanonicalHash(b))
}

func TestCanonicalHash_DiffersOnSubstantiveChange(t *testing.T) {
	a := sampleState()
	b := sampleState()
	r := b.Roles["ops"]
	r.Active = false
	b.Roles["ops"] = r

	assert.NotEqual(t, CanonicalHash(a), CanonicalHash(b))
}

func TestCanonicalHash_ExcludesEventHistory(t *testing.T) {
	a := sampleState()
	b := sampleState()
	b.EventHistory = []EventRecord{{EventType: EventInitializeConstants, Sequence: 1}}

	assert.Equal(t, CanonicalHash(a), CanonicalHash(b), "event_history must not affect the content address")
}

func TestCanonicalBytes_NoFloatingPointLiterals(t *testing.T) {
	raw := string(CanonicalBytes(sampleState()))
	require.NotEmpty(t, raw)
	assert.False(t, strings.ContainsAny(raw, "."), "canonical bytes must never contain a decimal point")
}

func TestCanonicalBytes_NoWhitespace(t *testing.T) {
	raw := string(CanonicalBytes(sampleState()))
	assert.False(t, strings.ContainsAny(raw, " \t\n\r"), "canonical bytes must be whitespace-free")
}
