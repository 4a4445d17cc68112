package resource

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every fallible operation in resx returns an error
// matching exactly one of these kinds via errors.Is.
var (
	// ErrInternal is returned for POSIX, transport, and serialisation failures.
	ErrInternal = errors.New("resx: internal")

	// ErrInvalidReference is returned when a reference is syntactically or
	// semantically unusable (bad URI, unknown transformer, protected file).
	ErrInvalidReference = errors.New("resx: invalid reference")

	// ErrUnknownResource is returned when a reference is valid but the
	// underlying resource does not exist.
	ErrUnknownResource = errors.New("resx: unknown resource")

	// ErrUnknownKey is returned when an attribute key is not available.
	ErrUnknownKey = errors.New("resx: unknown key")
)

// Error is the tagged error envelope. Kind is one of the sentinel errors
// above; Reason carries the operation-specific detail.
type Error struct {
	kind   error
	Reason string
	cause  error
}

// Errorf builds an Error of the given kind with a formatted reason.
// A %w verb in the format records the wrapped cause alongside the kind.
func Errorf(kind error, format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{kind: kind, Reason: wrapped.Error(), cause: errors.Unwrap(wrapped)}
}

func (e *Error) Error() string {
	return e.kind.Error() + ": " + e.Reason
}

// Kind returns the sentinel identifying the error class.
func (e *Error) Kind() error { return e.kind }

// Is reports whether target matches the error's kind, so that
// errors.Is(err, ErrUnknownResource) works across wrapping.
func (e *Error) Is(target error) bool { return target == e.kind }

// Unwrap exposes the underlying cause, when one was recorded.
func (e *Error) Unwrap() error { return e.cause }

// Convenience constructors for the four kinds.

func Internalf(format string, args ...any) *Error {
	return Errorf(ErrInternal, format, args...)
}

func InvalidReferencef(format string, args ...any) *Error {
	return Errorf(ErrInvalidReference, format, args...)
}

func UnknownResourcef(format string, args ...any) *Error {
	return Errorf(ErrUnknownResource, format, args...)
}

func UnknownKeyf(format string, args ...any) *Error {
	return Errorf(ErrUnknownKey, format, args...)
}
