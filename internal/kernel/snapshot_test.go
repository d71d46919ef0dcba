package kernel

import (
	"strings"
	"testing"

	kerrors "github.com/fthyco/simorg/infrastructure/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replayedState(t *testing.T) OrgState {
	t.Helper()
	events := []Event{
		initEvent(1),
		addRoleEvent(2, "mgmt", []string{"oversight"}, []string{"daily_report"}, nil),
		addRoleEvent(3, "ops", []string{"execution"}, []string{"strategy_plan"}, []string{"daily_report", "strategy_plan"}),
		addDependencyEvent(4, "mgmt", "ops", DependencyGovernance, true),
	}
	engine := NewEngine()
	state, err := engine.Replay(events)
	require.NoError(t, err)
	return state
}

func TestSnapshot_RoundTrip(t *testing.T) {
	state := replayedState(t)

	encoded, err := EncodeSnapshot(state)
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(encoded)
	require.NoError(t, err)

	assert.Equal(t, CanonicalHash(state), CanonicalHash(decoded))

	reencoded, err := EncodeSnapshot(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(encoded), string(reencoded), "re-encoding a decoded snapshot must be byte-identical")
}

func TestSnapshot_RestoreValidatesInvariants(t *testing.T) {
	state := replayedState(t)
	encoded, err := EncodeSnapshot(state)
	require.NoError(t, err)

	restored, err := RestoreSnapshot(encoded)
	require.NoError(t, err)
	assert.Equal(t, CanonicalHash(state), CanonicalHash(restored))
}

func TestSnapshot_RestoreRejectsViolatedInvariant(t *testing.T) {
	raw := `{
  "roles": {
    "lonely": {
      "id": "lonely",
      "name": "lonely",
      "purpose": "p",
      "responsibilities": ["x"],
      "required_inputs": [],
      "produced_outputs": ["orphan"],
      "scale_stage": "seed",
      "active": true
    }
  },
  "dependencies": [],
  "constraint_vector": {"capital": 50000, "talent": 50000, "time": 50000, "political_cost": 50000},
  "constants": {"differentiation_threshold": 3, "differentiation_min_capacity": 60000, "compression_max_combined_responsibilities": 5, "shock_deactivation_threshold": 8, "shock_debt_base_multiplier": 1, "suppressed_differentiation_debt_increment": 1},
  "structural_debt": 0,
  "scale_stage": "seed",
  "event_history": []
}`
	_, err := RestoreSnapshot([]byte(raw))
	require.Error(t, err)
	assert.Equal(t, RuleOrphanedOutput, kerrors.Rule(err))
	assert.True(t, kerrors.Is(err, kerrors.CodeSnapshotInvariant))
}

func TestSnapshot_DecodeRejectsUnknownField(t *testing.T) {
	state := replayedState(t)
	encoded, err := EncodeSnapshot(state)
	require.NoError(t, err)

	withExtra := strings.Replace(string(encoded), `"roles":`, `"bogus_field":true,"roles":`, 1)
	if withExtra == string(encoded) {
		t.Fatal("test fixture did not substitute roles; adjust the literal match")
	}

	_, err = DecodeSnapshot([]byte(withExtra))
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.CodeSnapshotDecode))
}

func TestSnapshot_DecodeRejectsFloatLiteral(t *testing.T) {
	state := replayedState(t)
	encoded, err := EncodeSnapshot(state)
	require.NoError(t, err)

	floaty := strings.Replace(string(encoded), `"structural_debt": 0`, `"structural_debt": 0.5`, 1)
	if floaty == string(encoded) {
		t.Fatal("test fixture did not substitute structural_debt; adjust the literal match")
	}

	_, err = DecodeSnapshot([]byte(floaty))
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.CodeSnapshotDecode))
}

func TestSnapshot_DecodeRejectsOutOfRangeInteger(t *testing.T) {
	state := replayedState(t)
	encoded, err := EncodeSnapshot(state)
	require.NoError(t, err)

	huge := strings.Replace(string(encoded), `"structural_debt": 0`, `"structural_debt": 99999999999999999999999999999`, 1)
	if huge == string(encoded) {
		t.Fatal("test fixture did not substitute structural_debt; adjust the literal match")
	}

	_, err = DecodeSnapshot([]byte(huge))
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.CodeSnapshotDecode))
}

func TestSnapshot_DecodeRejectsMissingField(t *testing.T) {
	raw := `{}`
	_, err := DecodeSnapshot([]byte(raw))
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.CodeSnapshotDecode))
}
