package kernel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	kerrors "github.com/fthyco/simorg/infrastructure/errors"
)

// snapshotRole, snapshotEdge, snapshotConstraints, snapshotConstants and
// snapshotEventRecord are the strict wire shapes for the snapshot codec.
// They are independent of the canonical hash form: roles are keyed by
// id rather than emitted as a sorted array, and the full state
// (including event_history) is included.
type snapshotRole struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Purpose          string   `json:"purpose"`
	Responsibilities []string `json:"responsibilities"`
	RequiredInputs   []string `json:"required_inputs"`
	ProducedOutputs  []string `json:"produced_outputs"`
	ScaleStage       string   `json:"scale_stage"`
	Active           bool     `json:"active"`
}

type snapshotEdge struct {
	FromRoleID string `json:"from_role_id"`
	ToRoleID   string `json:"to_role_id"`
	Type       string `json:"dependency_type"`
	Critical   bool   `json:"critical"`
}

type snapshotConstraints struct {
	Capital       int64 `json:"capital"`
	Talent        int64 `json:"talent"`
	Time          int64 `json:"time"`
	PoliticalCost int64 `json:"political_cost"`
}

type snapshotConstants struct {
	DifferentiationThreshold               int64 `json:"differentiation_threshold"`
	DifferentiationMinCapacity             int64 `json:"differentiation_min_capacity"`
	CompressionMaxCombinedResponsibilities int64 `json:"compression_max_combined_responsibilities"`
	ShockDeactivationThreshold              int64 `json:"shock_deactivation_threshold"`
	ShockDebtBaseMultiplier                 int64 `json:"shock_debt_base_multiplier"`
	SuppressedDifferentiationDebtIncrement   int64 `json:"suppressed_differentiation_debt_increment"`
}

type snapshotEventRecord struct {
	EventType   string `json:"event_type"`
	Timestamp   string `json:"timestamp"`
	Sequence    int64  `json:"sequence"`
	LogicalTime *int64 `json:"logical_time,omitempty"`
	EventUUID   string `json:"event_uuid,omitempty"`
}

type snapshotDoc struct {
	Roles            map[string]snapshotRole        `json:"roles"`
	Dependencies     []snapshotEdge                 `json:"dependencies"`
	ConstraintVector snapshotConstraints            `json:"constraint_vector"`
	DomainConstants  snapshotConstants               `json:"constants"`
	StructuralDebt   int64                          `json:"structural_debt"`
	ScaleStage       string                         `json:"scale_stage"`
	EventHistory     []snapshotEventRecord           `json:"event_history"`
}

var topLevelFields = []string{
	"roles", "dependencies", "constraint_vector",
	"constants", "structural_debt", "scale_stage", "event_history",
}
var roleFields = []string{
	"id", "name", "purpose", "responsibilities", "required_inputs",
	"produced_outputs", "scale_stage", "active",
}
var edgeFields = []string{"from_role_id", "to_role_id", "dependency_type", "critical"}
var constraintFields = []string{"capital", "talent", "time", "political_cost"}
var constantFields = []string{
	"differentiation_threshold", "differentiation_min_capacity",
	"compression_max_combined_responsibilities",
	"shock_deactivation_threshold", "shock_debt_base_multiplier",
	"suppressed_differentiation_debt_increment",
}
// EncodeSnapshot produces a strictly sorted, human-readable JSON
// rendering of the full state (including event history), independent of
// the canonical hash form's rules.
func EncodeSnapshot(s OrgState) ([]byte, error) {
	doc := toSnapshotDoc(s)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	// json.Encoder.Encode appends a trailing newline; the snapshot
	// format is exact-bytes round-trippable, so strip it.
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out, nil
}

func toSnapshotDoc(s OrgState) snapshotDoc {
	roles := make(map[string]snapshotRole, len(s.Roles))
	for id, r := range s.Roles {
		roles[id] = snapshotRole{
			ID:               r.ID,
			Name:             r.Name,
			Purpose:          r.Purpose,
			Responsibilities: sortedCopy(r.Responsibilities),
			RequiredInputs:   sortedCopy(r.RequiredInputs),
			ProducedOutputs:  sortedCopy(r.ProducedOutputs),
			ScaleStage:       string(r.ScaleStage),
			Active:           r.Active,
		}
	}
	deps := make([]snapshotEdge, 0, len(s.Dependencies))
	for _, e := range s.Dependencies {
		deps = append(deps, snapshotEdge{
			FromRoleID: e.FromRoleID,
			ToRoleID:   e.ToRoleID,
			Type:       string(e.Type),
			Critical:   e.Critical,
		})
	}
	sort.SliceStable(deps, func(i, j int) bool {
		if deps[i].FromRoleID != deps[j].FromRoleID {
			return deps[i].FromRoleID < deps[j].FromRoleID
		}
		if deps[i].ToRoleID != deps[j].ToRoleID {
			return deps[i].ToRoleID < deps[j].ToRoleID
		}
		return deps[i].Type < deps[j].Type
	})
	history := make([]snapshotEventRecord, 0, len(s.EventHistory))
	for _, ev := range s.EventHistory {
		history = append(history, snapshotEventRecord{
			EventType:   string(ev.EventType),
			Timestamp:   ev.Timestamp,
			Sequence:    ev.Sequence,
			LogicalTime: ev.LogicalTime,
			EventUUID:   ev.EventUUID,
		})
	}
	return snapshotDoc{
		Roles:        roles,
		Dependencies: deps,
		ConstraintVector: snapshotConstraints{
			Capital:       s.ConstraintVector.Capital,
			Talent:        s.ConstraintVector.Talent,
			Time:          s.ConstraintVector.Time,
			PoliticalCost: s.ConstraintVector.PoliticalCost,
		},
		DomainConstants: snapshotConstants{
			DifferentiationThreshold:               s.Constants.DifferentiationThreshold,
			DifferentiationMinCapacity:             s.Constants.DifferentiationMinCapacity,
			CompressionMaxCombinedResponsibilities: s.Constants.CompressionMaxCombinedResponsibilities,
			ShockDeactivationThreshold:              s.Constants.ShockDeactivationThreshold,
			ShockDebtBaseMultiplier:                 s.Constants.ShockDebtBaseMultiplier,
			SuppressedDifferentiationDebtIncrement:   s.Constants.SuppressedDifferentiationDebtIncrement,
		},
		StructuralDebt: s.StructuralDebt,
		ScaleStage:     string(s.ScaleStage),
		EventHistory:   history,
	}
}

// DecodeSnapshot strictly parses text against an exact field whitelist
// per object kind, rejects any floating-point literal anywhere in the
// tree, range-checks every integer against signed 64-bit bounds, and
// never mutates its input or injects defaults.
func DecodeSnapshot(text []byte) (OrgState, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return OrgState{}, kerrors.SnapshotDecode("$", "invalid JSON: "+err.Error())
	}

	if err := checkWhitelist("$", raw, topLevelFields); err != nil {
		return OrgState{}, err
	}

	rolesRaw, err := requireObject(raw, "roles")
	if err != nil {
		return OrgState{}, err
	}
	roles := make(map[string]Role, len(rolesRaw))
	for key, v := range rolesRaw {
		roleObj, ok := v.(map[string]interface{})
		if !ok {
			return OrgState{}, kerrors.SnapshotDecode("$.roles."+key, "role value must be an object")
		}
		path := "$.roles." + key
		if err := checkWhitelist(path, roleObj, roleFields); err != nil {
			return OrgState{}, err
		}
		role, err := decodeRole(path, roleObj)
		if err != nil {
			return OrgState{}, err
		}
		if role.ID != key {
			return OrgState{}, kerrors.SnapshotDecode(path+".id", fmt.Sprintf("role key %q does not match role id %q", key, role.ID))
		}
		roles[key] = role
	}

	depsRaw, err := requireArray(raw, "dependencies")
	if err != nil {
		return OrgState{}, err
	}
	deps := make([]DependencyEdge, 0, len(depsRaw))
	for i, v := range depsRaw {
		edgeObj, ok := v.(map[string]interface{})
		if !ok {
			return OrgState{}, kerrors.SnapshotDecode(fmt.Sprintf("$.dependencies[%d]", i), "dependency must be an object")
		}
		path := fmt.Sprintf("$.dependencies[%d]", i)
		if err := checkWhitelist(path, edgeObj, edgeFields); err != nil {
			return OrgState{}, err
		}
		edge, err := decodeEdge(path, edgeObj)
		if err != nil {
			return OrgState{}, err
		}
		deps = append(deps, edge)
	}

	cvRaw, err := requireObject(raw, "constraint_vector")
	if err != nil {
		return OrgState{}, err
	}
	if err := checkWhitelist("$.constraint_vector", cvRaw, constraintFields); err != nil {
		return OrgState{}, err
	}
	cv, err := decodeConstraintVector(cvRaw)
	if err != nil {
		return OrgState{}, err
	}

	constantsRaw, err := requireObject(raw, "constants")
	if err != nil {
		return OrgState{}, err
	}
	if err := checkWhitelist("$.constants", constantsRaw, constantFields); err != nil {
		return OrgState{}, err
	}
	constants, err := decodeDomainConstants(constantsRaw)
	if err != nil {
		return OrgState{}, err
	}

	debt, err := requireInt64(raw, "$.structural_debt", "structural_debt")
	if err != nil {
		return OrgState{}, err
	}

	stageRaw, ok := raw["scale_stage"]
	if !ok {
		return OrgState{}, kerrors.SnapshotDecode("$.scale_stage", "missing field scale_stage")
	}
	stageStr, ok := stageRaw.(string)
	if !ok {
		return OrgState{}, kerrors.SnapshotDecode("$.scale_stage", "scale_stage must be a string")
	}

	historyRaw, err := requireArray(raw, "event_history")
	if err != nil {
		return OrgState{}, err
	}
	history := make([]EventRecord, 0, len(historyRaw))
	for i, v := range historyRaw {
		recObj, ok := v.(map[string]interface{})
		if !ok {
			return OrgState{}, kerrors.SnapshotDecode(fmt.Sprintf("$.event_history[%d]", i), "event_history entry must be an object")
		}
		path := fmt.Sprintf("$.event_history[%d]", i)
		if err := checkWhitelistWithOptional(path, recObj, []string{"event_type", "timestamp", "sequence"}, []string{"logical_time", "event_uuid"}); err != nil {
			return OrgState{}, err
		}
		rec, err := decodeEventRecord(path, recObj)
		if err != nil {
			return OrgState{}, err
		}
		history = append(history, rec)
	}

	return OrgState{
		Roles:            roles,
		Dependencies:      deps,
		ConstraintVector:  cv,
		Constants:         constants,
		ScaleStage:        LifecycleStage(stageStr),
		StructuralDebt:    debt,
		EventHistory:      history,
	}, nil
}

// RestoreSnapshot decodes text and then validates all seven invariants,
// wrapping any violation as a snapshot error while preserving the
// underlying invariant's rule name.
func RestoreSnapshot(text []byte) (OrgState, error) {
	s, err := DecodeSnapshot(text)
	if err != nil {
		return OrgState{}, err
	}
	if err := ValidateInvariants(s); err != nil {
		rule := kerrors.Rule(err)
		ke := kerrors.AsKernelError(err)
		detail := ""
		if ke != nil {
			detail = ke.Message
		}
		return OrgState{}, kerrors.SnapshotInvariant(rule, detail)
	}
	return s, nil
}

func checkWhitelist(path string, obj map[string]interface{}, allowed []string) error {
	return checkWhitelistWithOptional(path, obj, allowed, nil)
}

func checkWhitelistWithOptional(path string, obj map[string]interface{}, required, optional []string) error {
	allowedSet := make(map[string]bool, len(required)+len(optional))
	for _, f := range required {
		allowedSet[f] = true
	}
	for _, f := range optional {
		allowedSet[f] = true
	}
	for k := range obj {
		if !allowedSet[k] {
			return kerrors.SnapshotDecode(path+"."+k, "unknown field "+k)
		}
	}
	for _, f := range required {
		if _, ok := obj[f]; !ok {
			return kerrors.SnapshotDecode(path+"."+f, "missing field "+f)
		}
	}
	if err := checkNoFloat(path, obj); err != nil {
		return err
	}
	return nil
}

// checkNoFloat recursively rejects any JSON number literal containing a
// decimal point or exponent marker, wherever it appears in the tree.
func checkNoFloat(path string, v interface{}) error {
	switch val := v.(type) {
	case json.Number:
		s := val.String()
		for _, r := range s {
			if r == '.' || r == 'e' || r == 'E' {
				return kerrors.SnapshotDecode(path, "floating-point literal not permitted: "+s)
			}
		}
	case map[string]interface{}:
		for k, child := range val {
			if err := checkNoFloat(path+"."+k, child); err != nil {
				return err
			}
		}
	case []interface{}:
		for i, child := range val {
			if err := checkNoFloat(fmt.Sprintf("%s[%d]", path, i), child); err != nil {
				return err
			}
		}
	}
	return nil
}

func requireObject(raw map[string]interface{}, field string) (map[string]interface{}, error) {
	v, ok := raw[field]
	if !ok {
		return nil, kerrors.SnapshotDecode("$."+field, "missing field "+field)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, kerrors.SnapshotDecode("$."+field, field+" must be an object")
	}
	return obj, nil
}

func requireArray(raw map[string]interface{}, field string) ([]interface{}, error) {
	v, ok := raw[field]
	if !ok {
		return nil, kerrors.SnapshotDecode("$."+field, "missing field "+field)
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, kerrors.SnapshotDecode("$."+field, field+" must be an array")
	}
	return arr, nil
}

func requireInt64(raw map[string]interface{}, path, field string) (int64, error) {
	v, ok := raw[field]
	if !ok {
		return 0, kerrors.SnapshotDecode(path, "missing field "+field)
	}
	return decodeInt64(path, v)
}

func decodeInt64(path string, v interface{}) (int64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, kerrors.SnapshotDecode(path, "value must be an integer")
	}
	i, err := num.Int64()
	if err != nil {
		return 0, kerrors.SnapshotDecode(path, "integer out of signed 64-bit range: "+num.String())
	}
	return i, nil
}

func decodeStringArray(path string, v interface{}) ([]string, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, kerrors.SnapshotDecode(path, "value must be an array of strings")
	}
	out := make([]string, 0, len(arr))
	for i, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, kerrors.SnapshotDecode(fmt.Sprintf("%s[%d]", path, i), "array entry must be a string")
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeRole(path string, obj map[string]interface{}) (Role, error) {
	id, _ := obj["id"].(string)
	name, _ := obj["name"].(string)
	purpose, _ := obj["purpose"].(string)
	stage, _ := obj["scale_stage"].(string)
	active, ok := obj["active"].(bool)
	if !ok {
		return Role{}, kerrors.SnapshotDecode(path+".active", "active must be a boolean")
	}
	resp, err := decodeStringArray(path+".responsibilities", obj["responsibilities"])
	if err != nil {
		return Role{}, err
	}
	inputs, err := decodeStringArray(path+".required_inputs", obj["required_inputs"])
	if err != nil {
		return Role{}, err
	}
	outputs, err := decodeStringArray(path+".produced_outputs", obj["produced_outputs"])
	if err != nil {
		return Role{}, err
	}
	return Role{
		ID:               id,
		Name:             name,
		Purpose:          purpose,
		Responsibilities: resp,
		RequiredInputs:   inputs,
		ProducedOutputs:  outputs,
		ScaleStage:       LifecycleStage(stage),
		Active:           active,
	}, nil
}

func decodeEdge(path string, obj map[string]interface{}) (DependencyEdge, error) {
	from, _ := obj["from_role_id"].(string)
	to, _ := obj["to_role_id"].(string)
	typ, _ := obj["dependency_type"].(string)
	critical, ok := obj["critical"].(bool)
	if !ok {
		return DependencyEdge{}, kerrors.SnapshotDecode(path+".critical", "critical must be a boolean")
	}
	return DependencyEdge{
		FromRoleID: from,
		ToRoleID:   to,
		Type:       DependencyType(typ),
		Critical:   critical,
	}, nil
}

func decodeConstraintVector(obj map[string]interface{}) (ConstraintVector, error) {
	capital, err := decodeInt64("$.constraint_vector.capital", obj["capital"])
	if err != nil {
		return ConstraintVector{}, err
	}
	talent, err := decodeInt64("$.constraint_vector.talent", obj["talent"])
	if err != nil {
		return ConstraintVector{}, err
	}
	t, err := decodeInt64("$.constraint_vector.time", obj["time"])
	if err != nil {
		return ConstraintVector{}, err
	}
	political, err := decodeInt64("$.constraint_vector.political_cost", obj["political_cost"])
	if err != nil {
		return ConstraintVector{}, err
	}
	return ConstraintVector{Capital: capital, Talent: talent, Time: t, PoliticalCost: political}, nil
}

func decodeDomainConstants(obj map[string]interface{}) (DomainConstants, error) {
	fields := map[string]*int64{}
	c := DomainConstants{}
	fields["differentiation_threshold"] = &c.DifferentiationThreshold
	fields["differentiation_min_capacity"] = &c.DifferentiationMinCapacity
	fields["compression_max_combined_responsibilities"] = &c.CompressionMaxCombinedResponsibilities
	fields["shock_deactivation_threshold"] = &c.ShockDeactivationThreshold
	fields["shock_debt_base_multiplier"] = &c.ShockDebtBaseMultiplier
	fields["suppressed_differentiation_debt_increment"] = &c.SuppressedDifferentiationDebtIncrement
	for name, dst := range fields {
		v, err := decodeInt64("$.constants."+name, obj[name])
		if err != nil {
			return DomainConstants{}, err
		}
		*dst = v
	}
	return c, nil
}

func decodeEventRecord(path string, obj map[string]interface{}) (EventRecord, error) {
	eventType, _ := obj["event_type"].(string)
	timestamp, _ := obj["timestamp"].(string)
	seq, err := decodeInt64(path+".sequence", obj["sequence"])
	if err != nil {
		return EventRecord{}, err
	}
	var logicalTime *int64
	if lt, ok := obj["logical_time"]; ok && lt != nil {
		v, err := decodeInt64(path+".logical_time", lt)
		if err != nil {
			return EventRecord{}, err
		}
		logicalTime = &v
	}
	eventUUID, _ := obj["event_uuid"].(string)
	return EventRecord{
		EventType:   EventType(eventType),
		Timestamp:   timestamp,
		Sequence:    seq,
		LogicalTime: logicalTime,
		EventUUID:   eventUUID,
	}, nil
}
