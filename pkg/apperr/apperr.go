// Package apperr defines the error taxonomy shared by the services and the HTTP layer.
// Every error that reaches a client carries a stable Code and a human Remark so that
// the presentation layer can branch without matching on free text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind int

// These constants enumerate the error kinds, ordered roughly by when they are detected.
const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindStateConflict
	KindIntegrity
)

// Code returns the stable wire code for the kind.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindAuthentication:
		return "AUTHENTICATION"
	case KindAuthorization:
		return "AUTHORIZATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindStateConflict:
		return "STATE_CONFLICT"
	case KindIntegrity:
		return "INTEGRITY"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps the kind onto a response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict, KindIntegrity:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Err, when set, is the underlying cause and is never shown
// to clients.
type Error struct {
	Kind   Kind
	Remark string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Remark, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Remark)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Because records cause as the underlying error and returns e.
func (e *Error) Because(cause error) *Error {
	e.Err = cause

	return e
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Remark: fmt.Sprintf(format, args...)}
}

// Validation reports missing, malformed, oversized or unexpected input.
func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

// Authentication reports an unknown user, a wrong password, an inactive account or a bad session.
func Authentication(format string, args ...interface{}) *Error {
	return newf(KindAuthentication, format, args...)
}

// Authorization reports a missing group membership.
func Authorization(format string, args ...interface{}) *Error {
	return newf(KindAuthorization, format, args...)
}

// NotFound reports an absent application, plan, task or account.
func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

// StateConflict reports a task that is not in the state the operation expects.
func StateConflict(format string, args ...interface{}) *Error {
	return newf(KindStateConflict, format, args...)
}

// Integrity reports a unique constraint violation.
func Integrity(format string, args ...interface{}) *Error {
	return newf(KindIntegrity, format, args...)
}

// Internal wraps an unexpected failure. The remark is generic on purpose.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Remark: "internal server error", Err: err}
}

// KindOf returns the kind of err; anything unclassified is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// From classifies err, wrapping anything unclassified as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Internal(err)
}
