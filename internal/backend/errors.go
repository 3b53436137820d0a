package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated reports a 401 from the backend: its session is gone.
	ErrUnauthenticated = errors.New("backend: unauthenticated")
	// ErrUnavailable reports a transport failure (refused, reset, timeout).
	ErrUnavailable = errors.New("backend: unavailable")
	// ErrRejected reports a well-formed answer carrying success=false or an error field.
	ErrRejected = errors.New("backend: rejected")
)

// Error is the typed failure returned by every backend call.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
	case e.Message != "":
		return "backend: " + e.Message
	case e.Status != 0:
		return fmt.Sprintf("backend: status %d", e.Status)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "backend: request failed"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the backend-provided message carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var be *Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}

func statusError(status int, message string) *Error {
	cause := ErrRejected
	if status == http.StatusUnauthorized {
		cause = ErrUnauthenticated
	}
	return &Error{Status: status, Message: message, Err: cause}
}

// IsBusiness reports a rejection carried by a successful HTTP answer (success=false or
// an error field), as opposed to a transport failure or an error status.
func IsBusiness(err error) bool {
	var be *Error
	if !errors.As(err, &be) || !errors.Is(err, ErrRejected) {
		return false
	}
	return be.Status >= http.StatusOK && be.Status < http.StatusMultipleChoices
}
