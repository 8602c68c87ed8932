// Package fault defines the closed error taxonomy surfaced by the
// governance engine. Policy outcomes (scope, gate, constraint results) are
// values, never errors; fault covers the infrastructure tier only.
package fault

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories the control plane maps to
// protocol-level codes.
type Kind int

const (
	// KindDomain is the catch-all for engine failures.
	KindDomain Kind = iota
	// KindValidation marks a bad shape or missing required field.
	KindValidation
	// KindNotFound marks an unknown task, project or entity.
	KindNotFound
	// KindUnauthorized marks a rejected credential.
	KindUnauthorized
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "domain"
	}
}

// Error is a categorized engine error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a validation error.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Unauthorizedf builds an unauthorized error.
func Unauthorizedf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

// Domainf builds a domain error, optionally wrapping a cause.
func Domainf(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindDomain, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of err, or KindDomain for uncategorized errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindDomain
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
