package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrDraftNotFound      = errors.New("draft not found")
	ErrNotFound           = errors.New("resource not found")
	ErrUnavailable        = errors.New("remote service unavailable")
	ErrOffline            = errors.New("storefront is offline")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrAlreadyVerified    = errors.New("payment already verified")
	ErrVerificationFailed = errors.New("payment could not be verified")
	ErrUnknownPair        = errors.New("garment type not offered by service")
	ErrUnauthorized       = errors.New("missing user authentication")
	ErrConflict           = errors.New("concurrent update conflict")
)

// ValidationError lists every missing or invalid field of a submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// RemoteError is a non-2xx answer of the laundry API.
type RemoteError struct {
	Status  int
	Message string
	cause   error
}

func NewRemoteError(status int, message string) *RemoteError {
	re := &RemoteError{Status: status, Message: message}
	switch {
	case status == http.StatusNotFound:
		re.cause = ErrNotFound
	case status >= 500:
		re.cause = ErrUnavailable
	}
	return re
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api responded with status %d", e.Status)
	}
	return fmt.Sprintf("api responded with status %d: %s", e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.cause
}

func Kind(err error) string {
	var ve *ValidationError
	var re *RemoteError
	switch {
	case err == nil:
		return ""

	case errors.As(err, &ve):
		return "validation_failed"

	case errors.Is(err, ErrDraftNotFound), errors.Is(err, ErrNotFound):
		return "not_found"

	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"

	case errors.Is(err, ErrUnknownPair):
		return "unknown_garment"

	case errors.Is(err, ErrOffline):
		return "offline"

	case errors.Is(err, ErrConflict):
		return "conflict"

	case errors.Is(err, ErrUnavailable):
		return "service_unavailable"

	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	case errors.As(err, &re) && re.Status < 500:
		return "rejected"

	default:
		return "internal_error"
	}
}

func HTTPStatus(err error) int {
	var ve *ValidationError
	var re *RemoteError
	switch {
	case err == nil:
		return http.StatusOK

	case errors.As(err, &ve), errors.Is(err, ErrUnknownPair):
		return http.StatusUnprocessableEntity

	case errors.Is(err, ErrDraftNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, ErrOffline), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable

	case errors.Is(err, ErrConflict):
		return http.StatusConflict

	case errors.Is(err, ErrMalformedResponse):
		return http.StatusBadGateway

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest

	case errors.As(err, &re) && re.Status < 500:
		return re.Status

	default:
		return http.StatusInternalServerError
	}
}
