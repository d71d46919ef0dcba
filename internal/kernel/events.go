package kernel

// EventType is the closed tag identifying one of the eight event kinds.
type EventType string

const (
	EventInitializeConstants  EventType = "initialize_constants"
	EventAddRole              EventType = "add_role"
	EventRemoveRole           EventType = "remove_role"
	EventDifferentiateRole    EventType = "differentiate_role"
	EventCompressRoles        EventType = "compress_roles"
	EventApplyConstraintChange EventType = "apply_constraint_change"
	EventInjectShock          EventType = "inject_shock"
	EventAddDependency        EventType = "add_dependency"
)

// KnownEventTypes lists every valid EventType, in declaration order.
var KnownEventTypes = []EventType{
	EventInitializeConstants,
	EventAddRole,
	EventRemoveRole,
	EventDifferentiateRole,
	EventCompressRoles,
	EventApplyConstraintChange,
	EventInjectShock,
	EventAddDependency,
}

// IsKnownEventType reports whether t is one of the eight closed variants.
func IsKnownEventType(t EventType) bool {
	for _, k := range KnownEventTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Event is the envelope carried by every submitted intent. Payload holds
// the type-specific fields; the engine dispatches on Type.
type Event struct {
	Type         EventType
	Timestamp    string
	Sequence     int64
	LogicalTime  *int64
	EventUUID    string
	Payload      Payload
}

// Payload is the closed union of type-specific event bodies. Exactly one
// field is populated per event, matching Type.
type Payload struct {
	InitializeConstants  *InitializeConstantsPayload
	AddRole              *AddRolePayload
	RemoveRole           *RemoveRolePayload
	DifferentiateRole    *DifferentiateRolePayload
	CompressRoles        *CompressRolesPayload
	ApplyConstraintChange *ApplyConstraintChangePayload
	InjectShock          *InjectShockPayload
	AddDependency        *AddDependencyPayload
}

// InitializeConstantsPayload carries optional overrides for each of the
// six domain thresholds. A nil field defaults to the current state value
// at application time (which, for the mandatory first event, is
// DefaultDomainConstants(), as seeded by NewOrgState).
type InitializeConstantsPayload struct {
	DifferentiationThreshold               *int64
	DifferentiationMinCapacity             *int64
	CompressionMaxCombinedResponsibilities *int64
	ShockDeactivationThreshold             *int64
	ShockDebtBaseMultiplier                *int64
	SuppressedDifferentiationDebtIncrement *int64
}

// AddRolePayload describes a new role to insert.
type AddRolePayload struct {
	ID               string
	Name             string
	Purpose          string
	Responsibilities []string
	RequiredInputs   []string
	ProducedOutputs  []string
}

// RemoveRolePayload names the role to delete.
type RemoveRolePayload struct {
	RoleID string
}

// DifferentiateRolePayload names the target role and its replacement
// descriptors.
type DifferentiateRolePayload struct {
	RoleID   string
	NewRoles []NewRoleDescriptor
}

// NewRoleDescriptor is one inheriting sub-role emitted by a
// differentiate_role transition.
type NewRoleDescriptor struct {
	ID               string
	Name             string
	Purpose          string
	Responsibilities []string
	RequiredInputs   []string
	ProducedOutputs  []string
}

// CompressRolesPayload names the source and target roles of a merge.
type CompressRolesPayload struct {
	SourceRoleID string
	TargetRoleID string
	Name         *string
	Purpose      *string
}

// ApplyConstraintChangePayload carries the four optional integer deltas.
type ApplyConstraintChangePayload struct {
	CapitalDelta       *int64
	TalentDelta        *int64
	TimeDelta          *int64
	PoliticalCostDelta *int64
}

// InjectShockPayload names the shock target and its magnitude.
type InjectShockPayload struct {
	Target    string
	Magnitude int64
}

// AddDependencyPayload describes a new directed edge.
type AddDependencyPayload struct {
	FromRoleID string
	ToRoleID   string
	Type       *DependencyType
	Critical   *bool
}

// EventRecord is the canonical-dict projection of an applied event, kept
// in OrgState.EventHistory for diagnostics. It is excluded from the
// canonical hash.
type EventRecord struct {
	EventType   EventType
	Timestamp   string
	Sequence    int64
	LogicalTime *int64
	EventUUID   string
}

func toEventRecord(e Event) EventRecord {
	return EventRecord{
		EventType:   e.Type,
		Timestamp:   e.Timestamp,
		Sequence:    e.Sequence,
		LogicalTime: e.LogicalTime,
		EventUUID:   e.EventUUID,
	}
}
