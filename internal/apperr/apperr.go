// Package apperr defines the error kinds shared by the service, the HTTP layer and the client.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound   Kind = "NotFoundError"
	KindValidation Kind = "ValidationError"
	KindNetwork    Kind = "NetworkError"
	KindConflict   Kind = "ConflictError"
	KindInternal   Kind = "InternalError"
)

// Status mirrors the HTTP status line of the response the error came from.
type Status struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

// Error carries the {message, status, body} payload of a failed operation.
type Error struct {
	Kind    Kind   `json:"name"`
	Message string `json:"message"`
	Status  Status `json:"status"`
	Body    any    `json:"body,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, code int, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Status:  Status{Code: code, Text: http.StatusText(code)},
	}
}

func NotFound(message string) *Error {
	return newError(KindNotFound, http.StatusNotFound, message)
}

// Validation builds a validation error; details ends up in the response body.
func Validation(message string, details any) *Error {
	e := newError(KindValidation, http.StatusBadRequest, message)
	e.Body = details
	return e
}

func Conflict(message string) *Error {
	return newError(KindConflict, http.StatusConflict, message)
}

func Network(err error) *Error {
	e := newError(KindNetwork, http.StatusBadGateway, "network request failed")
	e.cause = err
	return e
}

func Internal(err error) *Error {
	e := newError(KindInternal, http.StatusInternalServerError, "internal error")
	e.cause = err
	return e
}

// FromResponse rebuilds an error received over HTTP. The kind is derived from the status code.
func FromResponse(code int, message string, body any) *Error {
	var kind Kind
	switch {
	case code == http.StatusNotFound:
		kind = KindNotFound
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		kind = KindValidation
	case code == http.StatusConflict:
		kind = KindConflict
	case code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout:
		kind = KindNetwork
	default:
		kind = KindInternal
	}
	e := newError(kind, code, message)
	e.Body = body
	return e
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err; errors outside this package are internal.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
