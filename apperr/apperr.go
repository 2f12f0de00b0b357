package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error so handlers can map it to a response without
// inspecting message text.
type Kind string

const (
	Unauthenticated  Kind = "Unauthenticated"
	Unauthorized     Kind = "Unauthorized"
	NotFound         Kind = "NotFound"
	InvalidState     Kind = "InvalidState"
	Conflict         Kind = "Conflict"
	ValidationFailed Kind = "ValidationFailed"
	UpstreamFailure  Kind = "UpstreamFailure"
)

type Error struct {
	Kind    Kind
	Message string
	// CurrentStatus carries the entity status that made the operation
	// invalid. Set only for InvalidState errors.
	CurrentStatus string
	Err           error
}

func (e *Error) Error() string {
	if e.CurrentStatus != "" {
		return fmt.Sprintf("%s (current status: %s)", e.Message, e.CurrentStatus)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// InvalidStatef builds an InvalidState error that names the status the
// entity is currently in.
func InvalidStatef(currentStatus string, format string, args ...interface{}) *Error {
	return &Error{Kind: InvalidState, Message: fmt.Sprintf(format, args...), CurrentStatus: currentStatus}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusOf returns the CurrentStatus carried by an InvalidState error.
func StatusOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.CurrentStatus
	}
	return ""
}

// HTTPStatus maps an error to the HTTP status code handlers should respond
// with. Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case InvalidState, Conflict:
		return http.StatusConflict
	case ValidationFailed:
		return http.StatusBadRequest
	case UpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
