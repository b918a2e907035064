// Package apperrors provides the typed errors returned by the nearby-posts service.
// Message is always safe to hand to a caller; Internal is only logged.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code int

const (
	// CodeInternal covers every failure that has not been classified.
	CodeInternal Code = iota
	// CodeInvalidRequest indicates missing or malformed request fields.
	CodeInvalidRequest
	// CodeStoreUnavailable indicates the document store could not be reached or queried.
	CodeStoreUnavailable
)

type Error struct {
	Code     Code
	Message  string
	Internal string
	Field    string
	Err      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func (e *Error) WithInternal(format string, args ...any) *Error {
	e.Internal = fmt.Sprintf(format, args...)
	return e
}

func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func (c Code) String() string {
	switch c {
	case CodeInternal:
		return "internal"
	case CodeInvalidRequest:
		return "invalid_request"
	case CodeStoreUnavailable:
		return "store_unavailable"
	default:
		return fmt.Sprintf("unknown_code_%d", c)
	}
}

// Status returns the callable protocol status name for the code.
func (c Code) Status() string {
	switch c {
	case CodeInvalidRequest:
		return "INVALID_ARGUMENT"
	case CodeStoreUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func InvalidRequest(message string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: message}
}

func StoreUnavailable(message string) *Error {
	return &Error{Code: CodeStoreUnavailable, Message: message}
}

func Internal(message string) *Error {
	return &Error{Code: CodeInternal, Message: message}
}

// From returns err as an *Error, wrapping unclassified errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error").Wrap(err)
}

// IsInvalidRequest reports whether err carries CodeInvalidRequest.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, &Error{Code: CodeInvalidRequest})
}

// IsStoreUnavailable reports whether err carries CodeStoreUnavailable.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, &Error{Code: CodeStoreUnavailable})
}
