package kernel

import (
	"context"

	kerrors "github.com/fthyco/simorg/infrastructure/errors"
	"github.com/fthyco/simorg/infrastructure/logging"
)

// OrgEngine drives ordered, gated replay of an event stream against a
// single OrgState. It is not safe for concurrent use by multiple
// goroutines against the same instance; callers needing concurrent
// access must serialize externally.
type OrgEngine struct {
	state                OrgState
	lastAppliedSequence   int64
	constantsInitialized  bool
	log                   *logging.Logger
}

// EngineOption configures a new OrgEngine.
type EngineOption func(*OrgEngine)

// WithLogger attaches a structured logger used to record committed and
// rejected transitions. No log statement affects state or hash.
func WithLogger(l *logging.Logger) EngineOption {
	return func(e *OrgEngine) { e.log = l }
}

// NewEngine constructs a fresh engine with an empty initial state,
// ready to accept a mandatory first initialize_constants event.
func NewEngine(opts ...EngineOption) *OrgEngine {
	eng := &OrgEngine{state: NewOrgState()}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// State returns a deep copy of the engine's current committed state.
func (eng *OrgEngine) State() OrgState {
	return eng.state.Clone()
}

// LastAppliedSequence returns the sequence number of the most recently
// committed event, or 0 if none has been applied.
func (eng *OrgEngine) LastAppliedSequence() int64 {
	return eng.lastAppliedSequence
}

// ApplyEvent validates and, if valid, commits e against the engine's
// current state. On any failure the engine's visible state is
// unchanged.
func (eng *OrgEngine) ApplyEvent(e Event) (OrgState, TransitionResult, error) {
	if e.Sequence != eng.lastAppliedSequence+1 {
		err := kerrors.SequenceViolation(eng.lastAppliedSequence+1, e.Sequence)
		eng.logRejected(e, err)
		return eng.state, TransitionResult{}, err
	}

	if !eng.constantsInitialized {
		if e.Type != EventInitializeConstants {
			err := kerrors.ConstantsNotInitialized()
			eng.logRejected(e, err)
			return eng.state, TransitionResult{}, err
		}
	} else if e.Type == EventInitializeConstants {
		err := kerrors.ConstantsAlreadyInitialized()
		eng.logRejected(e, err)
		return eng.state, TransitionResult{}, err
	}

	if !IsKnownEventType(e.Type) {
		err := kerrors.UnknownEventType(string(e.Type))
		eng.logRejected(e, err)
		return eng.state, TransitionResult{}, err
	}

	candidate, result, err := applyTransition(eng.state.Clone(), e)
	if err != nil {
		eng.logRejected(e, err)
		return eng.state, TransitionResult{}, err
	}

	if err := ValidateInvariants(candidate); err != nil {
		eng.logRejected(e, err)
		return eng.state, TransitionResult{}, err
	}

	candidate.EventHistory = append(candidate.EventHistory, toEventRecord(e))

	eng.state = candidate
	eng.lastAppliedSequence = e.Sequence
	eng.constantsInitialized = true

	eng.logCommitted(e, candidate)
	return eng.state, result, nil
}

// Replay resets the engine to a fresh state and applies events in
// order. Any failure aborts replay; there is no skip-and-continue mode.
// On failure the engine is left at a fresh, uninitialized state.
func (eng *OrgEngine) Replay(events []Event) (OrgState, error) {
	eng.state = NewOrgState()
	eng.lastAppliedSequence = 0
	eng.constantsInitialized = false

	for _, e := range events {
		if _, _, err := eng.ApplyEvent(e); err != nil {
			eng.state = NewOrgState()
			eng.lastAppliedSequence = 0
			eng.constantsInitialized = false
			return OrgState{}, err
		}
	}
	return eng.State(), nil
}

// GetDiagnostics derives a Diagnostics summary from the engine's current
// state. Pure and idempotent.
func (eng *OrgEngine) GetDiagnostics() Diagnostics {
	return ComputeDiagnostics(eng.state)
}

func (eng *OrgEngine) logCommitted(e Event, s OrgState) {
	if eng.log == nil {
		return
	}
	eng.log.WithContext(context.Background()).WithFields(map[string]interface{}{
		"event_type":      e.Type,
		"sequence":        e.Sequence,
		"structural_debt": s.StructuralDebt,
	}).Debug("transition committed")
}

func (eng *OrgEngine) logRejected(e Event, err error) {
	if eng.log == nil {
		return
	}
	eng.log.WithContext(context.Background()).WithError(err).WithFields(map[string]interface{}{
		"event_type": e.Type,
		"sequence":   e.Sequence,
	}).Warn("transition rejected")
}
