// Package kernel implements the deterministic organization state machine:
// domain types, fixed-point arithmetic, transition rules, invariants, the
// canonical hasher, and the snapshot codec. Nothing in this package reads
// the wall clock or any source of randomness.
package kernel

import (
	"regexp"
	"strconv"
)

// SCALE is the fixed-point unit. A value of SCALE represents the real
// number 1.0. All monetary/capacity/density figures are int64 multiples
// of 1/SCALE.
const SCALE int64 = 10000

var roleIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidRoleID reports whether id matches the ASCII role-id pattern
// [A-Za-z0-9_-]+.
func ValidRoleID(id string) bool {
	return id != "" && roleIDPattern.MatchString(id)
}

// CheckedAdd adds a and b, returning an error if the result overflows
// signed 64-bit range.
func CheckedAdd(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, newOverflowError(a, "+", b)
	}
	return sum, nil
}

// CheckedMul multiplies a and b, returning an error if the result
// overflows signed 64-bit range.
func CheckedMul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	result := a * b
	if result/b != a {
		return 0, newOverflowError(a, "*", b)
	}
	return result, nil
}

// MustCheckedAdd panics on overflow. Reserved for call sites that have
// already bounds-checked their operands (e.g. literal constants).
func MustCheckedAdd(a, b int64) int64 {
	v, err := CheckedAdd(a, b)
	if err != nil {
		panic(err)
	}
	return v
}

// LifecycleStage is the four-value lifecycle stage tag shared by Role and
// OrgState.
type LifecycleStage string

const (
	StageSeed       LifecycleStage = "seed"
	StageGrowth     LifecycleStage = "growth"
	StageStructured LifecycleStage = "structured"
	StageMature     LifecycleStage = "mature"
)

// DependencyType is the tag carried by a DependencyEdge.
type DependencyType string

const (
	DependencyOperational  DependencyType = "operational"
	DependencyInformation  DependencyType = "informational"
	DependencyGovernance   DependencyType = "governance"
)

// Role is a single organizational role — the causal unit of structure.
// It is owned exclusively by the OrgState that contains it.
type Role struct {
	ID                string
	Name              string
	Purpose           string
	Responsibilities  []string
	RequiredInputs    []string
	ProducedOutputs   []string
	ScaleStage        LifecycleStage
	Active            bool
}

// Clone returns a deep copy of the role.
func (r Role) Clone() Role {
	c := r
	c.Responsibilities = append([]string(nil), r.Responsibilities...)
	c.RequiredInputs = append([]string(nil), r.RequiredInputs...)
	c.ProducedOutputs = append([]string(nil), r.ProducedOutputs...)
	return c
}

// DependencyEdge is a directed edge between two existing role ids.
// Duplicate edges are permitted; self-loops are rejected at insertion
// time by the add_dependency transition.
type DependencyEdge struct {
	FromRoleID string
	ToRoleID   string
	Type       DependencyType
	Critical   bool
}

// ConstraintVector holds the four resource constraints, each an int64
// fixed-point figure. All four must remain non-negative after any
// transition.
type ConstraintVector struct {
	Capital        int64
	Talent         int64
	Time           int64
	PoliticalCost  int64
}

// DefaultConstraintValue is the default per-field constraint value used
// by NewOrgState: 5.0 * SCALE.
const DefaultConstraintValue int64 = 5 * 10000

// CapacityIndex returns the organizational capacity index: the integer
// mean of the four constraint fields.
func (cv ConstraintVector) CapacityIndex() (int64, error) {
	sum, err := CheckedAdd(cv.Capital, cv.Talent)
	if err != nil {
		return 0, err
	}
	rest, err := CheckedAdd(cv.Time, cv.PoliticalCost)
	if err != nil {
		return 0, err
	}
	total, err := CheckedAdd(sum, rest)
	if err != nil {
		return 0, err
	}
	return total / 4, nil
}

// DomainConstants holds the six thresholds injected by the mandatory
// first event and immutable thereafter for the stream's lifetime.
type DomainConstants struct {
	DifferentiationThreshold                 int64
	DifferentiationMinCapacity               int64
	CompressionMaxCombinedResponsibilities   int64
	ShockDeactivationThreshold               int64
	ShockDebtBaseMultiplier                  int64
	SuppressedDifferentiationDebtIncrement   int64
}

// DefaultDomainConstants returns the default threshold values, used both
// as the zero-value fallback for omitted initialize_constants fields and
// as the generator's capacity-profile baseline.
func DefaultDomainConstants() DomainConstants {
	return DomainConstants{
		DifferentiationThreshold:               3,
		DifferentiationMinCapacity:             6 * SCALE,
		CompressionMaxCombinedResponsibilities: 5,
		ShockDeactivationThreshold:              8,
		ShockDebtBaseMultiplier:                 1,
		SuppressedDifferentiationDebtIncrement:  1,
	}
}

// TransitionResult is the immutable outcome record returned for every
// transition. Equality of TransitionResults across implementations is a
// correctness property, not a debugging convenience.
type TransitionResult struct {
	EventType                string
	Success                  bool
	DifferentiationExecuted  bool
	SuppressedDifferentiation bool
	DifferentiationSkipped   bool
	CompressionExecuted      bool
	Deactivated              bool
	Reason                   string
	PrimaryDebt              int64
	SecondaryDebt            int64
	TargetDensity            int64
	ShockTarget              string
	Magnitude                int64
}

// OrgState is the complete organizational snapshot.
type OrgState struct {
	Roles            map[string]Role
	Dependencies     []DependencyEdge
	ConstraintVector ConstraintVector
	Constants        DomainConstants
	ScaleStage       LifecycleStage
	StructuralDebt   int64
	EventHistory     []EventRecord
}

// NewOrgState creates a fresh, empty OrgState with the given constraint
// defaults, mirroring the originating system's create_initial_state.
func NewOrgState(opts ...StateOption) OrgState {
	s := OrgState{
		Roles:      make(map[string]Role),
		ScaleStage: StageSeed,
		ConstraintVector: ConstraintVector{
			Capital:       DefaultConstraintValue,
			Talent:        DefaultConstraintValue,
			Time:          DefaultConstraintValue,
			PoliticalCost: DefaultConstraintValue,
		},
		Constants: DefaultDomainConstants(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// StateOption configures NewOrgState.
type StateOption func(*OrgState)

// WithScaleStage overrides the initial lifecycle stage.
func WithScaleStage(stage LifecycleStage) StateOption {
	return func(s *OrgState) { s.ScaleStage = stage }
}

// WithConstraintVector overrides the initial constraint vector.
func WithConstraintVector(cv ConstraintVector) StateOption {
	return func(s *OrgState) { s.ConstraintVector = cv }
}

// WithConstants overrides the initial domain constants (only meaningful
// before the first initialize_constants event, e.g. for test fixtures).
func WithConstants(c DomainConstants) StateOption {
	return func(s *OrgState) { s.Constants = c }
}

// Clone returns a deep copy of the state, suitable for isolating a
// candidate transition from the engine's committed state.
func (s OrgState) Clone() OrgState {
	out := OrgState{
		Roles:            make(map[string]Role, len(s.Roles)),
		Dependencies:     make([]DependencyEdge, len(s.Dependencies)),
		ConstraintVector: s.ConstraintVector,
		Constants:        s.Constants,
		ScaleStage:       s.ScaleStage,
		StructuralDebt:   s.StructuralDebt,
		EventHistory:     make([]EventRecord, len(s.EventHistory)),
	}
	for id, r := range s.Roles {
		out.Roles[id] = r.Clone()
	}
	copy(out.Dependencies, s.Dependencies)
	copy(out.EventHistory, s.EventHistory)
	return out
}

func newOverflowError(a int64, op string, b int64) error {
	return &OverflowError{A: a, Op: op, B: b}
}

// OverflowError reports an int64 bounds violation in checked arithmetic.
type OverflowError struct {
	A  int64
	Op string
	B  int64
}

func (e *OverflowError) Error() string {
	return "integer overflow: " + formatOverflow(e.A, e.Op, e.B)
}

func formatOverflow(a int64, op string, b int64) string {
	return strconv.FormatInt(a, 10) + " " + op + " " + strconv.FormatInt(b, 10) + " overflows int64"
}
