package domain

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping.
type Code string

const (
	CodeNotFound      Code = "SERVICE_NOT_FOUND"
	CodeAlreadyExists Code = "SERVICE_ALREADY_EXISTS"
	CodeDeleteBlocked Code = "SERVICE_DELETE_BLOCKED"

	// Operational wrappers for unexpected infrastructure failures. Callers
	// never see raw store or transport errors, only one of these.
	CodeSearchError      Code = "SERVICE_SEARCH_ERROR"
	CodeFetchError       Code = "SERVICE_FETCH_ERROR"
	CodeCreateError      Code = "SERVICE_CREATE_ERROR"
	CodeUpdateError      Code = "SERVICE_UPDATE_ERROR"
	CodeDeleteError      Code = "SERVICE_DELETE_ERROR"
	CodeHealthCheckError Code = "SERVICE_HEALTH_CHECK_ERROR"
)

// Error is a coded domain error. The three domain codes (not found, already
// exists, delete blocked) propagate unchanged to the transports; the *_ERROR
// codes wrap an underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two domain errors by code so errors.Is works with the
// sentinel constructors below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func ErrNotFound() *Error {
	return &Error{Code: CodeNotFound, Message: "service not found"}
}

func ErrAlreadyExists() *Error {
	return &Error{Code: CodeAlreadyExists, Message: "a service with this name already exists"}
}

func ErrDeleteBlocked() *Error {
	return &Error{Code: CodeDeleteBlocked, Message: "service is still referenced by visible-role assignments"}
}

// Wrap re-wraps an unexpected error under an operational code. Domain
// errors pass through untouched so NotFound survives a manager boundary.
func Wrap(code Code, msg string, err error) error {
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf extracts the domain code from err, or "" for non-domain errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func IsNotFound(err error) bool      { return CodeOf(err) == CodeNotFound }
func IsAlreadyExists(err error) bool { return CodeOf(err) == CodeAlreadyExists }
func IsDeleteBlocked(err error) bool { return CodeOf(err) == CodeDeleteBlocked }
