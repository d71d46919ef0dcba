package kernel

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// CanonicalBytes produces the deterministic UTF-8 byte string whose
// SHA-256 is the state's content address: fixed top-level field order,
// roles sorted by id, dependencies sorted by (from, to, type), no
// whitespace, ASCII-only (non-ASCII escaped), no floats, no trailing
// newline. event_history is excluded.
func CanonicalBytes(s OrgState) []byte {
	var b strings.Builder
	b.WriteByte('{')

	writeKey(&b, "kernel_version")
	writeJSONInt(&b, KernelVersion)
	b.WriteByte(',')

	writeKey(&b, "roles")
	writeCanonicalRoles(&b, s.Roles)
	b.WriteByte(',')

	writeKey(&b, "dependencies")
	writeCanonicalDependencies(&b, s.Dependencies)
	b.WriteByte(',')

	writeKey(&b, "constraint_vector")
	writeCanonicalConstraintVector(&b, s.ConstraintVector)
	b.WriteByte(',')

	writeKey(&b, "structural_debt")
	writeJSONInt(&b, s.StructuralDebt)
	b.WriteByte(',')

	writeKey(&b, "scale_stage")
	writeJSONString(&b, string(s.ScaleStage))

	b.WriteByte('}')
	return []byte(b.String())
}

// KernelVersion is the canonical serializer's schema version, part of
// the hashed byte stream.
const KernelVersion int64 = 1

// CanonicalHash returns the lowercase hex SHA-256 digest of
// CanonicalBytes(s). Two states are equivalent iff their hashes match.
func CanonicalHash(s OrgState) string {
	sum := sha256.Sum256(CanonicalBytes(s))
	return hex.EncodeToString(sum[:])
}

func writeCanonicalRoles(b *strings.Builder, roles map[string]Role) {
	ids := make([]string, 0, len(roles))
	for id := range roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		writeCanonicalRole(b, roles[id])
	}
	b.WriteByte(']')
}

func writeCanonicalRole(b *strings.Builder, r Role) {
	b.WriteByte('{')
	writeKey(b, "id")
	writeJSONString(b, r.ID)
	b.WriteByte(',')
	writeKey(b, "name")
	writeJSONString(b, r.Name)
	b.WriteByte(',')
	writeKey(b, "purpose")
	writeJSONString(b, r.Purpose)
	b.WriteByte(',')
	writeKey(b, "responsibilities")
	writeJSONStringArraySorted(b, r.Responsibilities)
	b.WriteByte(',')
	writeKey(b, "required_inputs")
	writeJSONStringArraySorted(b, r.RequiredInputs)
	b.WriteByte(',')
	writeKey(b, "produced_outputs")
	writeJSONStringArraySorted(b, r.ProducedOutputs)
	b.WriteByte(',')
	writeKey(b, "scale_stage")
	writeJSONString(b, string(r.ScaleStage))
	b.WriteByte(',')
	writeKey(b, "active")
	writeJSONBool(b, r.Active)
	b.WriteByte('}')
}

func writeCanonicalDependencies(b *strings.Builder, deps []DependencyEdge) {
	sorted := append([]DependencyEdge(nil), deps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FromRoleID != sorted[j].FromRoleID {
			return sorted[i].FromRoleID < sorted[j].FromRoleID
		}
		if sorted[i].ToRoleID != sorted[j].ToRoleID {
			return sorted[i].ToRoleID < sorted[j].ToRoleID
		}
		return sorted[i].Type < sorted[j].Type
	})

	b.WriteByte('[')
	for i, e := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('{')
		writeKey(b, "from_role_id")
		writeJSONString(b, e.FromRoleID)
		b.WriteByte(',')
		writeKey(b, "to_role_id")
		writeJSONString(b, e.ToRoleID)
		b.WriteByte(',')
		writeKey(b, "dependency_type")
		writeJSONString(b, string(e.Type))
		b.WriteByte(',')
		writeKey(b, "critical")
		writeJSONBool(b, e.Critical)
		b.WriteByte('}')
	}
	b.WriteByte(']')
}

func writeCanonicalConstraintVector(b *strings.Builder, cv ConstraintVector) {
	b.WriteByte('{')
	writeKey(b, "capital")
	writeJSONInt(b, cv.Capital)
	b.WriteByte(',')
	writeKey(b, "talent")
	writeJSONInt(b, cv.Talent)
	b.WriteByte(',')
	writeKey(b, "time")
	writeJSONInt(b, cv.Time)
	b.WriteByte(',')
	writeKey(b, "political_cost")
	writeJSONInt(b, cv.PoliticalCost)
	b.WriteByte('}')
}

func writeKey(b *strings.Builder, key string) {
	writeJSONString(b, key)
	b.WriteByte(':')
}

func writeJSONInt(b *strings.Builder, v int64) {
	b.WriteString(strconv.FormatInt(v, 10))
}

func writeJSONBool(b *strings.Builder, v bool) {
	if v {
		b.WriteString("true")
	} else {
		b.WriteString("false")
	}
}

func writeJSONStringArraySorted(b *strings.Builder, in []string) {
	sorted := append([]string(nil), in...)
	sort.Strings(sorted)
	b.WriteByte('[')
	for i, s := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(b, s)
	}
	b.WriteByte(']')
}

// writeJSONString writes s as an ASCII-only JSON string literal: every
// byte outside the printable ASCII range, plus the mandatory JSON
// escapes, is rendered as a \uXXXX (or standard short) escape.
func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r >= 0x20 && r < 0x7f {
				b.WriteRune(r)
			} else if r <= 0xffff {
				b.WriteString(`\u`)
				writeHex4(b, uint32(r))
			} else {
				// Encode as a UTF-16 surrogate pair.
				r -= 0x10000
				hi := 0xd800 + (r >> 10)
				lo := 0xdc00 + (r & 0x3ff)
				b.WriteString(`\u`)
				writeHex4(b, uint32(hi))
				b.WriteString(`\u`)
				writeHex4(b, uint32(lo))
			}
		}
	}
	b.WriteByte('"')
}

const hexDigits = "0123456789abcdef"

func writeHex4(b *strings.Builder, v uint32) {
	b.WriteByte(hexDigits[(v>>12)&0xf])
	b.WriteByte(hexDigits[(v>>8)&0xf])
	b.WriteByte(hexDigits[(v>>4)&0xf])
	b.WriteByte(hexDigits[v&0xf])
}
