package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies gateway failures.
type ErrorKind string

const (
	ErrTimeout     ErrorKind = "timeout"
	ErrConnection  ErrorKind = "connection"
	ErrHTTP        ErrorKind = "http_error"
	ErrUnsupported ErrorKind = "unsupported"
	ErrValidation  ErrorKind = "validation"
	ErrUnknown     ErrorKind = "unknown"
)

// Error is a failed gateway call.
type Error struct {
	Kind    ErrorKind
	Gateway string
	Status  int
	Detail  string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s: %s (status %d): %s", e.Gateway, e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("gateway %s: %s: %s", e.Gateway, e.Kind, e.Detail)
}

// Retryable reports whether the same request may be sent again.
func (e *Error) Retryable() bool {
	return e.Kind == ErrTimeout || e.Kind == ErrConnection
}

func NewError(gateway string, kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Gateway: gateway, Detail: detail}
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var ge *Error
	ok := errors.As(err, &ge)
	return ge, ok
}

// Classify maps a transport error to a gateway error.
func Classify(gateway string, err error) *Error {
	if ge, ok := AsError(err); ok {
		return ge
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(gateway, ErrTimeout, err.Error())
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewError(gateway, ErrTimeout, err.Error())
	default:
		return NewError(gateway, ErrConnection, err.Error())
	}
}

// FromStatus maps an HTTP error status to a gateway error. 400 and 422 mean
// the rail rejected the request itself.
func FromStatus(gateway string, status int, detail string) *Error {
	kind := ErrHTTP
	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		kind = ErrValidation
	}
	return &Error{Kind: kind, Gateway: gateway, Status: status, Detail: detail}
}
