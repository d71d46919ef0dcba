package kernel

import (
	"testing"

	kerrors "github.com/fthyco/simorg/infrastructure/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqPtr(v int64) *int64 { return &v }

func initEvent(seq int64) Event {
	return Event{
		Type:        EventInitializeConstants,
		Sequence:    seq,
		LogicalTime: seqPtr(seq),
		Payload:     Payload{InitializeConstants: &InitializeConstantsPayload{}},
	}
}

func addRoleEvent(seq int64, id string, responsibilities, required, produced []string) Event {
	return Event{
		Type:        EventAddRole,
		Sequence:    seq,
		LogicalTime: seqPtr(seq),
		Payload: Payload{AddRole: &AddRolePayload{
			ID:               id,
			Name:             id,
			Purpose:          "test",
			Responsibilities: responsibilities,
			RequiredInputs:   required,
			ProducedOutputs:  produced,
		}},
	}
}

func addDependencyEvent(seq int64, from, to string, depType DependencyType, critical bool) Event {
	return Event{
		Type:        EventAddDependency,
		Sequence:    seq,
		LogicalTime: seqPtr(seq),
		Payload: Payload{AddDependency: &AddDependencyPayload{
			FromRoleID: from,
			ToRoleID:   to,
			Type:       &depType,
			Critical:   &critical,
		}},
	}
}

// Scenario 1: add role happy path.
func TestEngine_AddRoleHappyPath(t *testing.T) {
	events := []Event{
		initEvent(1),
		addRoleEvent(2, "mgmt", []string{"oversight"}, []string{"daily_report"}, nil),
		addRoleEvent(3, "ops", []string{"execution"}, []string{"strategy_plan"}, []string{"daily_report", "strategy_plan"}),
	}

	engineA := NewEngine()
	stateA, err := engineA.Replay(events)
	require.NoError(t, err)
	require.NoError(t, ValidateInvariants(stateA))

	engineB := NewEngine()
	stateB, err := engineB.Replay(events)
	require.NoError(t, err)

	assert.Equal(t, CanonicalHash(stateA), CanonicalHash(stateB))
}

// Scenario 2: suppressed differentiation.
func TestEngine_SuppressedDifferentiation(t *testing.T) {
	low := 2 * SCALE
	events := []Event{
		initEvent(1),
		addRoleEvent(2, "overloaded", []string{"r1", "r2", "r3", "r4"}, nil, []string{"out1"}),
		{
			Type:        EventApplyConstraintChange,
			Sequence:    3,
			LogicalTime: seqPtr(3),
			Payload: Payload{ApplyConstraintChange: &ApplyConstraintChangePayload{
				CapitalDelta:       deltaFrom(low, DefaultConstraintValue),
				TalentDelta:        deltaFrom(low, DefaultConstraintValue),
				TimeDelta:          deltaFrom(low, DefaultConstraintValue),
				PoliticalCostDelta: deltaFrom(low, DefaultConstraintValue),
			}},
		},
		{
			Type:        EventDifferentiateRole,
			Sequence:    4,
			LogicalTime: seqPtr(4),
			Payload: Payload{DifferentiateRole: &DifferentiateRolePayload{
				RoleID:   "overloaded",
				NewRoles: []NewRoleDescriptor{{ID: "split", Name: "split", Responsibilities: []string{"r1"}, ProducedOutputs: []string{"out1"}}},
			}},
		},
	}

	engine := NewEngine()
	debtBefore := engine.State().StructuralDebt
	state, result, err := replayWithLastResult(engine, events)
	require.NoError(t, err)

	assert.True(t, result.SuppressedDifferentiation)
	assert.False(t, result.DifferentiationExecuted)
	assert.Equal(t, debtBefore+state.Constants.SuppressedDifferentiationDebtIncrement, state.StructuralDebt)
	_, stillPresent := state.Roles["overloaded"]
	assert.True(t, stillPresent, "role must be unchanged when differentiation is suppressed")
}

// Scenario 3: shock deactivation.
func TestEngine_ShockDeactivation(t *testing.T) {
	events := []Event{
		initEvent(1),
		addRoleEvent(2, "r1", []string{"work"}, nil, []string{"o1"}),
		addRoleEvent(3, "r2", []string{"work"}, []string{"o1"}, nil),
		addDependencyEvent(4, "r1", "r2", DependencyOperational, false),
		{
			Type:        EventInjectShock,
			Sequence:    5,
			LogicalTime: seqPtr(5),
			Payload:     Payload{InjectShock: &InjectShockPayload{Target: "r1", Magnitude: 10}},
		},
	}

	engine := NewEngine()
	state, result, err := replayWithLastResult(engine, events)
	require.NoError(t, err)

	assert.True(t, result.Deactivated)
	assert.False(t, state.Roles["r1"].Active)
	assert.GreaterOrEqual(t, result.PrimaryDebt, int64(1))
	assert.Greater(t, state.StructuralDebt, int64(0))
}

// Scenario 4: orphaned output.
func TestEngine_OrphanedOutputRejected(t *testing.T) {
	events := []Event{
		initEvent(1),
		addRoleEvent(2, "producer", []string{"work"}, nil, []string{"orphan_output"}),
	}

	engine := NewEngine()
	_, err := engine.Replay(events)
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.CodeInvariant))
	assert.Equal(t, RuleOrphanedOutput, kerrors.Rule(err))
}

// Scenario 6: critical cycle rejection.
func TestEngine_CriticalCycleRejected(t *testing.T) {
	events := []Event{
		initEvent(1),
		addRoleEvent(2, "r1", []string{"work"}, []string{"o2"}, []string{"o1"}),
		addRoleEvent(3, "r2", []string{"work"}, []string{"o1"}, []string{"o2"}),
		addDependencyEvent(4, "r1", "r2", DependencyGovernance, true),
		addDependencyEvent(5, "r2", "r1", DependencyGovernance, true),
	}

	engine := NewEngine()
	_, err := engine.Replay(events)
	require.Error(t, err)
	assert.Equal(t, RuleCriticalCycle, kerrors.Rule(err))

	// The engine never commits the rejected event; a fresh replay of
	// only the first four events must succeed with just the r1→r2
	// dependency committed.
	engine2 := NewEngine()
	state, err := engine2.Replay(events[:4])
	require.NoError(t, err)
	assert.Len(t, state.Dependencies, 1)
}

func TestEngine_SequenceTotality(t *testing.T) {
	engine := NewEngine()

	_, _, err := engine.ApplyEvent(addRoleEvent(1, "r1", []string{"x"}, nil, []string{"o"}))
	require.Error(t, err, "first event must be initialize_constants")

	_, _, err = engine.ApplyEvent(initEvent(2))
	require.Error(t, err, "first event must carry sequence 1")
	assert.True(t, kerrors.Is(err, kerrors.CodeSequenceViolation))

	_, _, err = engine.ApplyEvent(initEvent(1))
	require.NoError(t, err)

	_, _, err = engine.ApplyEvent(initEvent(2))
	assert.True(t, kerrors.Is(err, kerrors.CodeConstantsAlreadyInitialized))

	_, _, err = engine.ApplyEvent(addRoleEvent(3, "r1", []string{"x"}, nil, []string{"o"}))
	assert.True(t, kerrors.Is(err, kerrors.CodeSequenceViolation), "sequence must be exactly last+1, not 3 after 1")
}

func TestEngine_ReplayIdempotence(t *testing.T) {
	events := []Event{
		initEvent(1),
		addRoleEvent(2, "mgmt", []string{"oversight"}, []string{"daily_report"}, nil),
		addRoleEvent(3, "ops", []string{"execution"}, []string{"strategy_plan"}, []string{"daily_report", "strategy_plan"}),
	}

	engine := NewEngine()
	first, err := engine.Replay(events)
	require.NoError(t, err)
	second, err := engine.Replay(events)
	require.NoError(t, err)

	assert.Equal(t, CanonicalHash(first), CanonicalHash(second))
}

func TestEngine_MonotoneStructuralDebt(t *testing.T) {
	events := []Event{
		initEvent(1),
		addRoleEvent(2, "r1", []string{"work"}, nil, []string{"o1"}),
		addRoleEvent(3, "r2", []string{"work"}, []string{"o1"}, nil),
		addDependencyEvent(4, "r1", "r2", DependencyOperational, false),
	}

	engine := NewEngine()
	var lastDebt int64
	for _, e := range events {
		state, _, err := engine.ApplyEvent(e)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, state.StructuralDebt, lastDebt)
		lastDebt = state.StructuralDebt
	}

	shockState, _, err := engine.ApplyEvent(Event{
		Type:        EventInjectShock,
		Sequence:    5,
		LogicalTime: seqPtr(5),
		Payload:     Payload{InjectShock: &InjectShockPayload{Target: "r1", Magnitude: 3}},
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, shockState.StructuralDebt, lastDebt)
}

func deltaFrom(target, current int64) *int64 {
	d := target - current
	return &d
}

func replayWithLastResult(engine *OrgEngine, events []Event) (OrgState, TransitionResult, error) {
	var last TransitionResult
	var state OrgState
	for _, e := range events {
		var err error
		state, last, err = engine.ApplyEvent(e)
		if err != nil {
			return OrgState{}, TransitionResult{}, err
		}
	}
	return state, last, nil
}
