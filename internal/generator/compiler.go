package generator

import (
	"fmt"

	kerrors "github.com/fthyco/simorg/infrastructure/errors"
	"github.com/fthyco/simorg/internal/kernel"
)

// DepartmentMap is the template-derived department projection returned
// alongside the compiled event stream. Unlike internal/cluster's
// graph-based projection, this mapping reflects the template author's
// intended structure rather than inferred topology.
type DepartmentMap struct {
	Departments []DepartmentEntry
}

// DepartmentEntry names one department and the role ids it contains,
// restricted to roles that were actually emitted.
type DepartmentEntry struct {
	Name    string
	RoleIDs []string
}

const (
	capacityLowDelta  = -10000
	capacityHighDelta = 20000
)

// CompileFromTemplate deterministically compiles template and spec into a
// kernel event stream, seeded by seed. Two calls with identical arguments
// produce an identical event slice, byte for byte once marshalled.
//
// The stream is self-verified by replaying it through a throwaway engine
// before being returned; a rejected event is a defect in the compiler, not
// in the caller's input, so it is reported as a generator invariant
// failure rather than propagated as the original kernel error.
func CompileFromTemplate(template IndustryTemplate, spec TemplateSpec, seed int64) ([]kernel.Event, DepartmentMap, error) {
	stream := NewStream(seed)
	var events []kernel.Event
	seq := int64(0)
	nextSeq := func() int64 {
		seq++
		return seq
	}

	// Step 1: mandatory InitializeConstants.
	s := nextSeq()
	events = append(events, kernel.Event{
		Type:        kernel.EventInitializeConstants,
		Timestamp:   seqTimestamp(s),
		Sequence:    s,
		LogicalTime: &s,
		Payload:     kernel.Payload{InitializeConstants: &kernel.InitializeConstantsPayload{}},
	})

	// Step 2: capacity profile.
	emitCapacityEvents(spec, &events, nextSeq)

	// Step 3: roles from the template's departments.
	roleIDs := emitTemplateRoles(template, &events, nextSeq)

	// Step 4: dependencies declared by the template.
	addedEdges := emitTemplateDependencies(template, roleIDs, &events, nextSeq)

	// Step 5: RNG-driven intra-department density fill.
	emitExtraDensityEdges(template, spec, stream, roleIDs, addedEdges, &events, nextSeq)

	// Step 6: fragility (hub concentration).
	if spec.FragilityMode && len(roleIDs) >= 2 {
		emitFragilityEdges(roleIDs, addedEdges, &events, nextSeq)
	}

	// Step 7: shock injection.
	if spec.ShockMagnitude > 0 && len(roleIDs) > 0 {
		emitShockEvent(spec, roleIDs, &events, nextSeq)
	}

	deptMap := buildDepartmentMap(template, roleIDs)

	if err := selfVerify(events); err != nil {
		return nil, DepartmentMap{}, err
	}

	return events, deptMap, nil
}

func seqTimestamp(seq int64) string {
	return fmt.Sprintf("t%d", seq)
}

// emitCapacityEvents emits a single ApplyConstraintChange reaching the
// requested capacity profile, expressed as a delta against the kernel's
// own default constants rather than a re-hardcoded literal baseline. The
// event is omitted entirely when the delta is zero.
func emitCapacityEvents(spec TemplateSpec, events *[]kernel.Event, nextSeq func() int64) {
	minCap := kernel.DefaultDomainConstants().DifferentiationMinCapacity

	var target int64
	switch spec.CapacityProfile {
	case CapacityLow:
		target = minCap + capacityLowDelta
	case CapacityBalanced:
		target = minCap
	case CapacityHigh:
		target = minCap + capacityHighDelta
	default:
		target = minCap
	}

	delta := target - kernel.DefaultConstraintValue
	if delta == 0 {
		return
	}

	s := nextSeq()
	*events = append(*events, kernel.Event{
		Type:        kernel.EventApplyConstraintChange,
		Timestamp:   seqTimestamp(s),
		Sequence:    s,
		LogicalTime: &s,
		Payload: kernel.Payload{ApplyConstraintChange: &kernel.ApplyConstraintChangePayload{
			CapitalDelta:       &delta,
			TalentDelta:        &delta,
			TimeDelta:          &delta,
			PoliticalCostDelta: &delta,
		}},
	})
}

// emitTemplateRoles emits an AddRole event per blueprint role, in
// department then role declaration order, returning the role ids in
// creation order. Every role self-consumes its own produced outputs so
// the invariant requiring every output to be consumed somewhere holds by
// construction without relying on cross-role wiring.
func emitTemplateRoles(template IndustryTemplate, events *[]kernel.Event, nextSeq func() int64) []string {
	var roleIDs []string

	for _, dept := range template.Departments {
		for _, role := range dept.Roles {
			produced := append([]string(nil), role.ProducedOutputs...)
			if len(produced) == 0 {
				produced = []string{"output_" + role.IDSuffix}
			}
			required := append([]string(nil), role.RequiredInputs...)
			for _, p := range produced {
				if !contains(required, p) {
					required = append(required, p)
				}
			}

			s := nextSeq()
			*events = append(*events, kernel.Event{
				Type:        kernel.EventAddRole,
				Timestamp:   seqTimestamp(s),
				Sequence:    s,
				LogicalTime: &s,
				Payload: kernel.Payload{AddRole: &kernel.AddRolePayload{
					ID:               role.IDSuffix,
					Name:             role.Name,
					Purpose:          role.Purpose,
					Responsibilities: append([]string(nil), role.Responsibilities...),
					RequiredInputs:   required,
					ProducedOutputs:  produced,
				}},
			})
			roleIDs = append(roleIDs, role.IDSuffix)
		}
	}

	return roleIDs
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

type edgeKey struct {
	from string
	to   string
}

// emitTemplateDependencies emits the template's declared dependencies,
// skipping any edge whose endpoint was never emitted as a role and
// deduplicating repeated (from, to) pairs.
func emitTemplateDependencies(template IndustryTemplate, roleIDs []string, events *[]kernel.Event, nextSeq func() int64) map[edgeKey]bool {
	added := make(map[edgeKey]bool)
	valid := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		valid[id] = true
	}

	for _, dep := range template.Dependencies {
		if !valid[dep.FromRole] || !valid[dep.ToRole] {
			continue
		}
		key := edgeKey{from: dep.FromRole, to: dep.ToRole}
		if added[key] {
			continue
		}
		added[key] = true

		depType := dep.Type
		critical := dep.Critical
		s := nextSeq()
		*events = append(*events, kernel.Event{
			Type:        kernel.EventAddDependency,
			Timestamp:   seqTimestamp(s),
			Sequence:    s,
			LogicalTime: &s,
			Payload: kernel.Payload{AddDependency: &kernel.AddDependencyPayload{
				FromRoleID: dep.FromRole,
				ToRoleID:   dep.ToRole,
				Type:       &depType,
				Critical:   &critical,
			}},
		})
	}

	return added
}

// emitExtraDensityEdges adds non-critical operational edges within each
// department until the department's intra-department density reaches
// spec.IntraDensityTarget, picking candidate pairs in an order shuffled
// by stream so the result is reproducible but not hand-ordered.
func emitExtraDensityEdges(template IndustryTemplate, spec TemplateSpec, stream *Stream, roleIDs []string, addedEdges map[edgeKey]bool, events *[]kernel.Event, nextSeq func() int64) {
	valid := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		valid[id] = true
	}

	for _, dept := range template.Departments {
		var deptRoleIDs []string
		for _, r := range dept.Roles {
			if valid[r.IDSuffix] {
				deptRoleIDs = append(deptRoleIDs, r.IDSuffix)
			}
		}
		k := len(deptRoleIDs)
		if k < 2 {
			continue
		}

		maxIntra := int64(k * (k - 1))
		targetIntra := spec.IntraDensityTarget * maxIntra / kernel.SCALE

		var existing int64
		for _, a := range deptRoleIDs {
			for _, b := range deptRoleIDs {
				if a != b && addedEdges[edgeKey{from: a, to: b}] {
					existing++
				}
			}
		}

		needed := targetIntra - existing
		if needed <= 0 {
			continue
		}

		var candidates []edgeKey
		for _, a := range deptRoleIDs {
			for _, b := range deptRoleIDs {
				if a != b && !addedEdges[edgeKey{from: a, to: b}] {
					candidates = append(candidates, edgeKey{from: a, to: b})
				}
			}
		}
		Shuffle(stream, candidates)

		var count int64
		for _, pair := range candidates {
			if count >= needed {
				break
			}
			addedEdges[pair] = true
			depType := kernel.DependencyOperational
			critical := false
			s := nextSeq()
			*events = append(*events, kernel.Event{
				Type:        kernel.EventAddDependency,
				Timestamp:   seqTimestamp(s),
				Sequence:    s,
				LogicalTime: &s,
				Payload: kernel.Payload{AddDependency: &kernel.AddDependencyPayload{
					FromRoleID: pair.from,
					ToRoleID:   pair.to,
					Type:       &depType,
					Critical:   &critical,
				}},
			})
			count++
		}
	}
}

// emitFragilityEdges connects the first role (the hub) to every other
// role, marking each outgoing edge critical unless a critical path
// already runs from the target back to the hub — accepting that edge as
// critical too would close a critical cycle, which the kernel's
// invariants reject outright.
func emitFragilityEdges(roleIDs []string, addedEdges map[edgeKey]bool, events *[]kernel.Event, nextSeq func() int64) {
	hub := roleIDs[0]

	var criticalEdges []kernel.DependencyEdge
	for _, e := range *events {
		if e.Type == kernel.EventAddDependency && e.Payload.AddDependency.Critical != nil && *e.Payload.AddDependency.Critical {
			criticalEdges = append(criticalEdges, kernel.DependencyEdge{
				FromRoleID: e.Payload.AddDependency.FromRoleID,
				ToRoleID:   e.Payload.AddDependency.ToRoleID,
			})
		}
	}

	for _, target := range roleIDs[1:] {
		pair := edgeKey{from: hub, to: target}
		if addedEdges[pair] {
			continue
		}
		addedEdges[pair] = true

		isCritical := !kernel.HasCriticalPath(target, hub, criticalEdges)

		depType := kernel.DependencyOperational
		s := nextSeq()
		*events = append(*events, kernel.Event{
			Type:        kernel.EventAddDependency,
			Timestamp:   seqTimestamp(s),
			Sequence:    s,
			LogicalTime: &s,
			Payload: kernel.Payload{AddDependency: &kernel.AddDependencyPayload{
				FromRoleID: hub,
				ToRoleID:   target,
				Type:       &depType,
				Critical:   &isCritical,
			}},
		})

		if isCritical {
			criticalEdges = append(criticalEdges, kernel.DependencyEdge{FromRoleID: hub, ToRoleID: target})
		}
	}
}

// emitShockEvent injects a shock onto the first role.
func emitShockEvent(spec TemplateSpec, roleIDs []string, events *[]kernel.Event, nextSeq func() int64) {
	target := roleIDs[0]
	s := nextSeq()
	*events = append(*events, kernel.Event{
		Type:        kernel.EventInjectShock,
		Timestamp:   seqTimestamp(s),
		Sequence:    s,
		LogicalTime: &s,
		Payload: kernel.Payload{InjectShock: &kernel.InjectShockPayload{
			Target:    target,
			Magnitude: spec.ShockMagnitude,
		}},
	})
}

func buildDepartmentMap(template IndustryTemplate, roleIDs []string) DepartmentMap {
	valid := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		valid[id] = true
	}

	var out DepartmentMap
	for _, dept := range template.Departments {
		var ids []string
		for _, r := range dept.Roles {
			if valid[r.IDSuffix] {
				ids = append(ids, r.IDSuffix)
			}
		}
		out.Departments = append(out.Departments, DepartmentEntry{Name: dept.Name, RoleIDs: ids})
	}
	return out
}

// selfVerify replays the compiled stream through a throwaway engine. A
// rejection here means the compiler itself produced an invalid stream,
// which is always a bug in this package rather than in the template or
// spec supplied by the caller.
func selfVerify(events []kernel.Event) error {
	engine := kernel.NewEngine()
	if _, err := engine.Replay(events); err != nil {
		return kerrors.GeneratorInvariant(fmt.Sprintf("self-verification replay rejected an event: %v", err))
	}
	return nil
}
