package domain

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the engine surfaces to callers.
type Kind string

const (
	KindNotFound             Kind = "NotFound"
	KindInvalidRole          Kind = "InvalidRole"
	KindIneligibleAssignment Kind = "IneligibleAssignment"
	KindConflict             Kind = "Conflict"
	KindValidationFailed     Kind = "ValidationFailed"
	KindInternal             Kind = "Internal"
)

// Error is the structured error returned by every engine operation.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidRole          = &Error{Kind: KindInvalidRole, Message: "invalid role"}
	ErrIneligibleAssignment = &Error{Kind: KindIneligibleAssignment, Message: "ineligible assignment"}
	ErrConflict             = &Error{Kind: KindConflict, Message: "conflict"}
	ErrValidationFailed     = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	ErrInternal             = &Error{Kind: KindInternal, Message: "internal error"}
)

func NotFound(entity string, id any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

func InvalidRole(userID uint, want ...string) *Error {
	return &Error{Kind: KindInvalidRole, Message: fmt.Sprintf("user %d must have role %v", userID, want)}
}

func Ineligible(format string, args ...any) *Error {
	return &Error{Kind: KindIneligibleAssignment, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func ValidationFailed(message, detail string) *Error {
	return &Error{Kind: KindValidationFailed, Message: message, Detail: detail}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Detail: err.Error(), Err: err}
}

// KindOf returns the taxonomy kind of err; untyped errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError coerces err into the taxonomy, wrapping untyped errors as Internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
