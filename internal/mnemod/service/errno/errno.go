// Package errno defines the error taxonomy shared by the dispatch runtime.
// Every error that can cross the dispatch boundary carries a stable Kind so
// transports can surface a uniform error shape.
package errno

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a class of runtime error.
type Kind string

const (
	KindValidation             Kind = "ValidationError"
	KindDependencyNotRegistered Kind = "DependencyNotRegistered"
	KindCircularDependency     Kind = "CircularDependencyDetected"
	KindConstructionFailed     Kind = "ConstructionFailed"
	KindPluginDepUnresolved    Kind = "PluginDependencyUnresolved"
	KindPluginDepCycle         Kind = "PluginDependencyCycle"
	KindOperationCollision     Kind = "OperationNameCollision"
	KindPluginSetupFailed      Kind = "PluginSetupFailed"
	KindUnknownTool            Kind = "UnknownTool"
	KindUnknownOperation       Kind = "UnknownOperation"
	KindRateLimited            Kind = "RateLimited"
	KindDomainExecution        Kind = "DomainExecutionError"
)

// Error is a kinded runtime error. Validation errors additionally carry the
// full list of violations so callers see every problem at once.
type Error struct {
	kind       Kind
	message    string
	violations []string
	cause      error
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		kind:    kind,
		message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates an error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{
		kind:    kind,
		message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

// NewValidation creates a ValidationError listing every violation found.
func NewValidation(violations []string) *Error {
	return &Error{
		kind:       KindValidation,
		message:    fmt.Sprintf("parameter validation failed: %s", strings.Join(violations, "; ")),
		violations: violations,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the error kind.
func (e *Error) Kind() Kind {
	return e.kind
}

// Message returns the human-readable message without the kind prefix.
func (e *Error) Message() string {
	return e.message
}

// Violations returns the individual validation violations, if any.
func (e *Error) Violations() []string {
	return e.violations
}

// KindOf extracts the Kind from an error chain. Errors without a Kind are
// reported as DomainExecutionError, matching the dispatch error policy:
// whatever a concrete operation raised is opaque to the runtime.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindDomainExecution
}

// IsKind reports whether the error chain contains an error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
