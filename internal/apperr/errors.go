// Package apperr defines the error kinds shared by the quotation core and the
// surfaces that expose it (tool router, HTTP API, CLI).
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to react to it.
type Kind string

const (
	// KindNotFound means a referenced entity does not exist.
	KindNotFound Kind = "not_found"
	// KindExpired means a quotation is past its validity deadline.
	KindExpired Kind = "expired"
	// KindInvalidTransition means a requested state change is not allowed.
	KindInvalidTransition Kind = "invalid_transition"
	// KindValidation means the input was malformed or incomplete.
	KindValidation Kind = "validation"
	// KindUpstream means an embedding, LLM or store call failed or timed out.
	KindUpstream Kind = "upstream"
	// KindConflict means a uniqueness constraint rejected a write.
	KindConflict Kind = "conflict"
	// KindInternal is used for unclassified errors.
	KindInternal Kind = "internal"
)

// Error carries a Kind alongside a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the caller (usually the reasoning component)
// is expected to handle this kind by itself, e.g. by asking the user.
func (k Kind) Recoverable() bool {
	switch k {
	case KindNotFound, KindExpired, KindInvalidTransition, KindValidation:
		return true
	default:
		return false
	}
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a not_found error.
func NotFound(format string, args ...any) *Error { return newf(KindNotFound, format, args...) }

// Expired returns an expired error.
func Expired(format string, args ...any) *Error { return newf(KindExpired, format, args...) }

// InvalidTransition returns an invalid_transition error.
func InvalidTransition(format string, args ...any) *Error {
	return newf(KindInvalidTransition, format, args...)
}

// Validation returns a validation error.
func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }

// Conflict returns a conflict error.
func Conflict(format string, args ...any) *Error { return newf(KindConflict, format, args...) }

// Upstream wraps err as an upstream failure.
func Upstream(err error, msg string) *Error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the message of the first *Error in err's chain, falling
// back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}
