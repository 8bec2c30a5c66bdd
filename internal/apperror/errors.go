// Package apperror defines the error taxonomy shared by the campaign workflow.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindStateConflict
	KindValidation
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindStateConflict:
		return "state_conflict"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a classified error. Current and Allowed are set for state conflicts.
type Error struct {
	Kind    Kind
	Message string
	Current string
	Allowed []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports a campaign id that does not resolve.
func NotFound(id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("campaign %s not found", id)}
}

// Validation reports malformed or missing input.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// StateConflict reports an operation invoked from an illegal status.
func StateConflict(op, current string, allowed ...string) *Error {
	return &Error{
		Kind:    KindStateConflict,
		Message: fmt.Sprintf("cannot %s campaign in status %q, allowed: %s", op, current, strings.Join(allowed, ", ")),
		Current: current,
		Allowed: allowed,
	}
}

// Conflict reports a concurrent modification detected by the version check.
func Conflict(id string) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf("campaign %s was modified concurrently, retry", id)}
}

// Upstream wraps a failure of the artifact store or another remote dependency.
func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// Internal wraps an unanticipated failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
