package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrStore         = errors.New("store failure")
	ErrExternalAPI   = errors.New("external api failure")
	ErrRateLimited   = errors.New("external api rate limited")
	ErrUnauthorized  = errors.New("external api unauthorized")
	ErrBadRequest    = errors.New("external api bad request")
	ErrJarNotFound   = errors.New("jar not found")
	ErrNotConfigured = errors.New("bank integration not configured")
	ErrNoClientInfo  = errors.New("client info not fetched yet")
	ErrThrottled     = errors.New("bank call deferred by local rate window")
	ErrValidation    = errors.New("validation failed")
)

// APIErrorKind classifies bank API failures. All kinds are handled the same
// way by the poller (skip the cycle) but are logged distinctly.
type APIErrorKind string

const (
	KindRateLimited  APIErrorKind = "rate_limited"
	KindBadRequest   APIErrorKind = "bad_request"
	KindUnauthorized APIErrorKind = "unauthorized"
	KindTransient    APIErrorKind = "transient"
)

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) APIErrorKind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	default:
		return KindTransient
	}
}

// ExternalAPIError describes a failed call to the bank API. Status is zero for
// network failures.
type ExternalAPIError struct {
	Op     string
	Kind   APIErrorKind
	Status int
	Body   string
	Err    error
}

func (e *ExternalAPIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("bank %s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("bank %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ExternalAPIError) Unwrap() error { return e.Err }

func (e *ExternalAPIError) Is(target error) bool {
	switch target {
	case ErrExternalAPI:
		return true
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrBadRequest:
		return e.Kind == KindBadRequest
	}
	return false
}

// StoreError wraps any persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// NewStoreError wraps err unless it is nil or already a StoreError.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ValidationError reports a rejected request parameter.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
