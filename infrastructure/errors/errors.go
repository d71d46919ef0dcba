// Package errors provides the typed error taxonomy surfaced at every
// kernel boundary: transitions, invariant validation, snapshot decoding,
// and generator verification.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is one of the closed set of error categories a kernel operation
// can fail with.
type Code string

const (
	CodeSequenceViolation           Code = "sequence_violation"
	CodeConstantsNotInitialized     Code = "constants_not_initialized"
	CodeConstantsAlreadyInitialized Code = "constants_already_initialized"
	CodeUnknownEventType            Code = "unknown_event_type"
	CodeInvalidPayload              Code = "invalid_payload"
	CodeRoleCollision               Code = "role_collision"
	CodeMissingRole                 Code = "missing_role"
	CodeSelfLoop                    Code = "self_loop"
	CodeCompressionOverflow         Code = "compression_overflow"
	CodeNegativeConstraint          Code = "negative_constraint"
	CodeIntegerOverflow             Code = "integer_overflow"
	CodeInvariant                   Code = "invariant"
	CodeSnapshotDecode              Code = "snapshot:decode"
	CodeSnapshotInvariant           Code = "snapshot:invariant"
	CodeGeneratorInvariant          Code = "generator:invariant"
)

// KernelError is a structured error carrying the failing Code, an
// optional invariant Rule name (populated only for CodeInvariant and
// CodeSnapshotInvariant), a human-readable Message, and free-form
// Details for diagnostics.
type KernelError struct {
	Code    Code
	Rule    string
	Message string
	Details map[string]interface{}
	Err     error
}

// Error implements the error interface.
func (e *KernelError) Error() string {
	tag := string(e.Code)
	if e.Rule != "" {
		tag = fmt.Sprintf("%s:%s", e.Code, e.Rule)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", tag, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", tag, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *KernelError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value pair and returns the receiver for
// chaining.
func (e *KernelError) WithDetails(key string, value interface{}) *KernelError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a KernelError with the given code and message.
func New(code Code, message string) *KernelError {
	return &KernelError{Code: code, Message: message}
}

// Wrap creates a KernelError that wraps an underlying error.
func Wrap(code Code, message string, err error) *KernelError {
	return &KernelError{Code: code, Message: message, Err: err}
}

// SequenceViolation reports an out-of-order or gapped event sequence.
func SequenceViolation(expected, got int64) *KernelError {
	return New(CodeSequenceViolation, "event sequence out of order").
		WithDetails("expected", expected).
		WithDetails("got", got)
}

// ConstantsNotInitialized reports an event applied before the mandatory
// initialize_constants event.
func ConstantsNotInitialized() *KernelError {
	return New(CodeConstantsNotInitialized, "first event must be initialize_constants")
}

// ConstantsAlreadyInitialized reports a second initialize_constants
// event within the same stream.
func ConstantsAlreadyInitialized() *KernelError {
	return New(CodeConstantsAlreadyInitialized, "constants already initialized")
}

// UnknownEventType reports a type tag outside the eight closed variants.
func UnknownEventType(t string) *KernelError {
	return New(CodeUnknownEventType, "unknown event type").WithDetails("type", t)
}

// InvalidPayload reports a malformed or missing payload field.
func InvalidPayload(reason string) *KernelError {
	return New(CodeInvalidPayload, reason)
}

// RoleCollision reports an add_role targeting an id already present.
func RoleCollision(id string) *KernelError {
	return New(CodeRoleCollision, "role already exists").WithDetails("role_id", id)
}

// MissingRole reports a reference to a role id that does not exist.
func MissingRole(id string) *KernelError {
	return New(CodeMissingRole, "role does not exist").WithDetails("role_id", id)
}

// SelfLoop reports an add_dependency whose endpoints are identical.
func SelfLoop(id string) *KernelError {
	return New(CodeSelfLoop, "self-loop dependency rejected").WithDetails("role_id", id)
}

// CompressionOverflow reports a compress_roles whose combined
// responsibility set exceeds the configured cap.
func CompressionOverflow(count, max int64) *KernelError {
	return New(CodeCompressionOverflow, "combined responsibilities exceed cap").
		WithDetails("count", count).
		WithDetails("max", max)
}

// NegativeConstraint reports a constraint change that would drive a
// field below zero.
func NegativeConstraint(field string, value int64) *KernelError {
	return New(CodeNegativeConstraint, "constraint would become negative").
		WithDetails("field", field).
		WithDetails("value", value)
}

// IntegerOverflow reports a checked arithmetic overflow.
func IntegerOverflow(err error) *KernelError {
	return Wrap(CodeIntegerOverflow, "integer overflow", err)
}

// Invariant reports a named invariant violation.
func Invariant(rule, detail string) *KernelError {
	return &KernelError{Code: CodeInvariant, Rule: rule, Message: detail}
}

// SnapshotDecode reports a structural snapshot decode failure, with path
// identifying the offending field.
func SnapshotDecode(path, reason string) *KernelError {
	return New(CodeSnapshotDecode, reason).WithDetails("path", path)
}

// SnapshotInvariant wraps an invariant violation discovered while
// restoring a snapshot, preserving the underlying rule name.
func SnapshotInvariant(rule, detail string) *KernelError {
	return &KernelError{Code: CodeSnapshotInvariant, Rule: rule, Message: detail}
}

// GeneratorInvariant reports a self-verification failure in the
// deterministic generator's own throwaway replay.
func GeneratorInvariant(detail string) *KernelError {
	return New(CodeGeneratorInvariant, detail)
}

// Is reports whether err is a *KernelError with the given code.
func Is(err error, code Code) bool {
	var ke *KernelError
	if stderrors.As(err, &ke) {
		return ke.Code == code
	}
	return false
}

// AsKernelError extracts a *KernelError from an error chain.
func AsKernelError(err error) *KernelError {
	var ke *KernelError
	if stderrors.As(err, &ke) {
		return ke
	}
	return nil
}

// Rule extracts the invariant rule name from err, if it carries one.
func Rule(err error) string {
	if ke := AsKernelError(err); ke != nil {
		return ke.Rule
	}
	return ""
}
