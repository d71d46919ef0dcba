package kernel

import (
	"sort"

	kerrors "github.com/fthyco/simorg/infrastructure/errors"
)

// MinDensityForSplit is referenced by the clustering package; defined
// here alongside the other fixed-point constants this package owns.
const MinDensityForSplit int64 = SCALE / 10 // 0.1 * SCALE

// applyTransition dispatches on e.Type and returns the candidate new
// state and its TransitionResult. It never mutates s; the engine commits
// the returned state only after invariant validation succeeds.
func applyTransition(s OrgState, e Event) (OrgState, TransitionResult, error) {
	switch e.Type {
	case EventInitializeConstants:
		return applyInitializeConstants(s, e)
	case EventAddRole:
		return applyAddRole(s, e)
	case EventRemoveRole:
		return applyRemoveRole(s, e)
	case EventDifferentiateRole:
		return applyDifferentiateRole(s, e)
	case EventCompressRoles:
		return applyCompressRoles(s, e)
	case EventApplyConstraintChange:
		return applyConstraintChange(s, e)
	case EventInjectShock:
		return applyInjectShock(s, e)
	case EventAddDependency:
		return applyAddDependency(s, e)
	default:
		return s, TransitionResult{}, kerrors.UnknownEventType(string(e.Type))
	}
}

func applyInitializeConstants(s OrgState, e Event) (OrgState, TransitionResult, error) {
	p := e.Payload.InitializeConstants
	if p == nil {
		return s, TransitionResult{}, kerrors.InvalidPayload("initialize_constants requires a payload")
	}
	next := s.Clone()
	c := next.Constants
	if p.DifferentiationThreshold != nil {
		c.DifferentiationThreshold = *p.DifferentiationThreshold
	}
	if p.DifferentiationMinCapacity != nil {
		c.DifferentiationMinCapacity = *p.DifferentiationMinCapacity
	}
	if p.CompressionMaxCombinedResponsibilities != nil {
		c.CompressionMaxCombinedResponsibilities = *p.CompressionMaxCombinedResponsibilities
	}
	if p.ShockDeactivationThreshold != nil {
		c.ShockDeactivationThreshold = *p.ShockDeactivationThreshold
	}
	if p.ShockDebtBaseMultiplier != nil {
		c.ShockDebtBaseMultiplier = *p.ShockDebtBaseMultiplier
	}
	if p.SuppressedDifferentiationDebtIncrement != nil {
		c.SuppressedDifferentiationDebtIncrement = *p.SuppressedDifferentiationDebtIncrement
	}
	next.Constants = c
	return next, TransitionResult{EventType: string(e.Type), Success: true, Reason: "constants initialized"}, nil
}

func applyAddRole(s OrgState, e Event) (OrgState, TransitionResult, error) {
	p := e.Payload.AddRole
	if p == nil {
		return s, TransitionResult{}, kerrors.InvalidPayload("add_role requires a payload")
	}
	if !ValidRoleID(p.ID) {
		return s, TransitionResult{}, kerrors.InvalidPayload("add_role: malformed role id " + p.ID)
	}
	if _, exists := s.Roles[p.ID]; exists {
		return s, TransitionResult{}, kerrors.RoleCollision(p.ID)
	}
	next := s.Clone()
	next.Roles[p.ID] = Role{
		ID:               p.ID,
		Name:             p.Name,
		Purpose:          p.Purpose,
		Responsibilities: sortedCopy(p.Responsibilities),
		RequiredInputs:   sortedCopy(p.RequiredInputs),
		ProducedOutputs:  sortedCopy(p.ProducedOutputs),
		ScaleStage:       next.ScaleStage,
		Active:           true,
	}
	return next, TransitionResult{EventType: string(e.Type), Success: true, Reason: "role added"}, nil
}

func applyRemoveRole(s OrgState, e Event) (OrgState, TransitionResult, error) {
	p := e.Payload.RemoveRole
	if p == nil {
		return s, TransitionResult{}, kerrors.InvalidPayload("remove_role requires a payload")
	}
	if _, ok := s.Roles[p.RoleID]; !ok {
		return s, TransitionResult{}, kerrors.MissingRole(p.RoleID)
	}
	next := s.Clone()
	delete(next.Roles, p.RoleID)
	next.Dependencies = filterEdges(next.Dependencies, func(edge DependencyEdge) bool {
		return edge.FromRoleID != p.RoleID && edge.ToRoleID != p.RoleID
	})
	return next, TransitionResult{EventType: string(e.Type), Success: true, Reason: "role removed"}, nil
}

func applyDifferentiateRole(s OrgState, e Event) (OrgState, TransitionResult, error) {
	p := e.Payload.DifferentiateRole
	if p == nil {
		return s, TransitionResult{}, kerrors.InvalidPayload("differentiate_role requires a payload")
	}
	role, ok := s.Roles[p.RoleID]
	if !ok {
		return s, TransitionResult{}, kerrors.MissingRole(p.RoleID)
	}

	threshold := s.Constants.DifferentiationThreshold
	minCapacity := s.Constants.DifferentiationMinCapacity

	if int64(len(role.Responsibilities)) <= threshold {
		next := s.Clone()
		return next, TransitionResult{
			EventType:              string(e.Type),
			Success:                true,
			DifferentiationSkipped: true,
			Reason:                 "responsibility count does not exceed threshold",
		}, nil
	}

	capacity, err := s.ConstraintVector.CapacityIndex()
	if err != nil {
		return s, TransitionResult{}, kerrors.IntegerOverflow(err)
	}

	if capacity < minCapacity {
		next := s.Clone()
		debt, err := CheckedAdd(next.StructuralDebt, s.Constants.SuppressedDifferentiationDebtIncrement)
		if err != nil {
			return s, TransitionResult{}, kerrors.IntegerOverflow(err)
		}
		next.StructuralDebt = debt
		return next, TransitionResult{
			EventType:                 string(e.Type),
			Success:                   true,
			SuppressedDifferentiation: true,
			Reason:                    "capacity below differentiation minimum",
		}, nil
	}

	if len(p.NewRoles) == 0 {
		return s, TransitionResult{}, kerrors.InvalidPayload("differentiate_role: new_roles must be non-empty")
	}

	next := s.Clone()
	delete(next.Roles, p.RoleID)
	for _, d := range p.NewRoles {
		if !ValidRoleID(d.ID) {
			return s, TransitionResult{}, kerrors.InvalidPayload("differentiate_role: malformed new role id " + d.ID)
		}
		if _, exists := next.Roles[d.ID]; exists {
			return s, TransitionResult{}, kerrors.RoleCollision(d.ID)
		}
		requiredInputs := d.RequiredInputs
		if requiredInputs == nil {
			requiredInputs = role.RequiredInputs
		}
		next.Roles[d.ID] = Role{
			ID:               d.ID,
			Name:             d.Name,
			Purpose:          d.Purpose,
			Responsibilities: sortedCopy(d.Responsibilities),
			RequiredInputs:   sortedCopy(requiredInputs),
			ProducedOutputs:  sortedCopy(d.ProducedOutputs),
			ScaleStage:       role.ScaleStage,
			Active:           true,
		}
	}
	return next, TransitionResult{
		EventType:               string(e.Type),
		Success:                 true,
		DifferentiationExecuted: true,
		Reason:                  "role differentiated",
	}, nil
}

func applyCompressRoles(s OrgState, e Event) (OrgState, TransitionResult, error) {
	p := e.Payload.CompressRoles
	if p == nil {
		return s, TransitionResult{}, kerrors.InvalidPayload("compress_roles requires a payload")
	}
	source, ok := s.Roles[p.SourceRoleID]
	if !ok {
		return s, TransitionResult{}, kerrors.MissingRole(p.SourceRoleID)
	}
	target, ok := s.Roles[p.TargetRoleID]
	if !ok {
		return s, TransitionResult{}, kerrors.MissingRole(p.TargetRoleID)
	}

	combinedResp := unionSorted(source.Responsibilities, target.Responsibilities)
	if int64(len(combinedResp)) > s.Constants.CompressionMaxCombinedResponsibilities {
		return s, TransitionResult{}, kerrors.CompressionOverflow(int64(len(combinedResp)), s.Constants.CompressionMaxCombinedResponsibilities)
	}

	next := s.Clone()
	newTarget := next.Roles[p.TargetRoleID]
	newTarget.Responsibilities = combinedResp
	newTarget.RequiredInputs = unionSorted(source.RequiredInputs, target.RequiredInputs)
	newTarget.ProducedOutputs = unionSorted(source.ProducedOutputs, target.ProducedOutputs)
	if p.Name != nil {
		newTarget.Name = *p.Name
	}
	if p.Purpose != nil {
		newTarget.Purpose = *p.Purpose
	}
	next.Roles[p.TargetRoleID] = newTarget
	delete(next.Roles, p.SourceRoleID)

	rewritten := make([]DependencyEdge, 0, len(next.Dependencies))
	for _, edge := range next.Dependencies {
		if edge.FromRoleID == p.SourceRoleID {
			edge.FromRoleID = p.TargetRoleID
		}
		if edge.ToRoleID == p.SourceRoleID {
			edge.ToRoleID = p.TargetRoleID
		}
		if edge.FromRoleID == edge.ToRoleID {
			continue
		}
		rewritten = append(rewritten, edge)
	}
	next.Dependencies = rewritten

	return next, TransitionResult{
		EventType:           string(e.Type),
		Success:             true,
		CompressionExecuted: true,
		Reason:              "roles compressed",
	}, nil
}

func applyConstraintChange(s OrgState, e Event) (OrgState, TransitionResult, error) {
	p := e.Payload.ApplyConstraintChange
	if p == nil {
		return s, TransitionResult{}, kerrors.InvalidPayload("apply_constraint_change requires a payload")
	}
	next := s.Clone()
	cv := next.ConstraintVector

	apply := func(field string, current int64, delta *int64) (int64, error) {
		d := int64(0)
		if delta != nil {
			d = *delta
		}
		v, err := CheckedAdd(current, d)
		if err != nil {
			return 0, kerrors.IntegerOverflow(err)
		}
		if v < 0 {
			return 0, kerrors.NegativeConstraint(field, v)
		}
		return v, nil
	}

	var err error
	if cv.Capital, err = apply("capital", cv.Capital, p.CapitalDelta); err != nil {
		return s, TransitionResult{}, err
	}
	if cv.Talent, err = apply("talent", cv.Talent, p.TalentDelta); err != nil {
		return s, TransitionResult{}, err
	}
	if cv.Time, err = apply("time", cv.Time, p.TimeDelta); err != nil {
		return s, TransitionResult{}, err
	}
	if cv.PoliticalCost, err = apply("political_cost", cv.PoliticalCost, p.PoliticalCostDelta); err != nil {
		return s, TransitionResult{}, err
	}
	next.ConstraintVector = cv

	return next, TransitionResult{EventType: string(e.Type), Success: true, Reason: "constraints adjusted"}, nil
}

func applyInjectShock(s OrgState, e Event) (OrgState, TransitionResult, error) {
	p := e.Payload.InjectShock
	if p == nil {
		return s, TransitionResult{}, kerrors.InvalidPayload("inject_shock requires a payload")
	}
	if _, ok := s.Roles[p.Target]; !ok {
		return s, TransitionResult{}, kerrors.MissingRole(p.Target)
	}

	// Pre-shock state is used for all density computations.
	totalEdges := len(s.Dependencies)
	targetIncident := 0
	neighbourSet := make(map[string]bool)
	for _, edge := range s.Dependencies {
		if edge.FromRoleID == p.Target {
			targetIncident++
			if edge.ToRoleID != p.Target {
				neighbourSet[edge.ToRoleID] = true
			}
		}
		if edge.ToRoleID == p.Target {
			targetIncident++
			if edge.FromRoleID != p.Target {
				neighbourSet[edge.FromRoleID] = true
			}
		}
	}
	targetDensity := LocalDensity(targetIncident, totalEdges)

	primary := p.Magnitude * (s.Constants.ShockDebtBaseMultiplier + targetDensity)
	if primary < 1 {
		primary = 1
	}

	next := s.Clone()
	debt, err := CheckedAdd(next.StructuralDebt, primary)
	if err != nil {
		return s, TransitionResult{}, kerrors.IntegerOverflow(err)
	}
	next.StructuralDebt = debt

	deactivated := false
	if p.Magnitude > s.Constants.ShockDeactivationThreshold {
		r := next.Roles[p.Target]
		r.Active = false
		next.Roles[p.Target] = r
		deactivated = true
	}

	neighbours := make([]string, 0, len(neighbourSet))
	for id := range neighbourSet {
		neighbours = append(neighbours, id)
	}
	sort.Strings(neighbours)

	var secondary int64
	for _, c := range neighbours {
		incident := 0
		for _, edge := range s.Dependencies {
			if edge.FromRoleID == c || edge.ToRoleID == c {
				incident++
			}
		}
		dC := LocalDensity(incident, totalEdges)
		contribution := p.Magnitude * dC
		if contribution < 1 {
			contribution = 1
		}
		secondary, err = CheckedAdd(secondary, contribution)
		if err != nil {
			return s, TransitionResult{}, kerrors.IntegerOverflow(err)
		}
	}
	debt, err = CheckedAdd(next.StructuralDebt, secondary)
	if err != nil {
		return s, TransitionResult{}, kerrors.IntegerOverflow(err)
	}
	next.StructuralDebt = debt

	return next, TransitionResult{
		EventType:     string(e.Type),
		Success:       true,
		Deactivated:   deactivated,
		PrimaryDebt:   primary,
		SecondaryDebt: secondary,
		TargetDensity: targetDensity,
		ShockTarget:   p.Target,
		Magnitude:     p.Magnitude,
		Reason:        "shock injected",
	}, nil
}

func applyAddDependency(s OrgState, e Event) (OrgState, TransitionResult, error) {
	p := e.Payload.AddDependency
	if p == nil {
		return s, TransitionResult{}, kerrors.InvalidPayload("add_dependency requires a payload")
	}
	if _, ok := s.Roles[p.FromRoleID]; !ok {
		return s, TransitionResult{}, kerrors.MissingRole(p.FromRoleID)
	}
	if _, ok := s.Roles[p.ToRoleID]; !ok {
		return s, TransitionResult{}, kerrors.MissingRole(p.ToRoleID)
	}
	if p.FromRoleID == p.ToRoleID {
		return s, TransitionResult{}, kerrors.SelfLoop(p.FromRoleID)
	}
	depType := DependencyOperational
	if p.Type != nil {
		depType = *p.Type
	}
	critical := false
	if p.Critical != nil {
		critical = *p.Critical
	}
	next := s.Clone()
	next.Dependencies = append(next.Dependencies, DependencyEdge{
		FromRoleID: p.FromRoleID,
		ToRoleID:   p.ToRoleID,
		Type:       depType,
		Critical:   critical,
	})
	return next, TransitionResult{EventType: string(e.Type), Success: true, Reason: "dependency added"}, nil
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

func unionSorted(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		set[v] = true
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func filterEdges(edges []DependencyEdge, keep func(DependencyEdge) bool) []DependencyEdge {
	out := make([]DependencyEdge, 0, len(edges))
	for _, e := range edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
