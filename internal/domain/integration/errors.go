package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

var (
	// ErrMappingNotFound means no mapping or no platform reference exists for a SKU.
	// Item-level: the SKU is skipped, the job continues.
	ErrMappingNotFound = errors.New("integration: product mapping not found")
	// ErrAuthFailure means credentials could not be obtained or were rejected after a refresh.
	ErrAuthFailure = errors.New("integration: platform authentication failed")
	// ErrUnauthorized is a single 401 from a platform; the caller refreshes once.
	ErrUnauthorized = errors.New("integration: platform rejected credentials")
	// ErrRateLimitExceeded is returned when a rate limit could not be absorbed by waiting.
	ErrRateLimitExceeded = errors.New("integration: rate limit exceeded")
	// ErrTransientRemote covers timeouts, 5xx and unavailable platforms.
	ErrTransientRemote = errors.New("integration: transient remote error")
	// ErrRemoteRejected is a non-retryable 4xx answer from a platform.
	ErrRemoteRejected = errors.New("integration: remote rejected request")
	// ErrValidation marks malformed input; never retried.
	ErrValidation = errors.New("integration: validation failed")
	// ErrPartialFailure marks an operation where some platforms succeeded and others failed.
	ErrPartialFailure = errors.New("integration: partial failure")
)

// Mapping and job errors
var (
	ErrMappingAlreadyExists  = errors.New("integration: product mapping already exists")
	ErrMappingIncomplete     = errors.New("integration: mapping requires a reference on every platform")
	ErrMappingDeleted        = errors.New("integration: product mapping is deleted")
	ErrPlatformNotConfigured = errors.New("integration: platform not configured")
	ErrJobNotFound           = errors.New("integration: sync job not found")
	ErrJobAlreadyRunning     = errors.New("integration: a job of this type is already running")
	ErrInvalidJobTransition  = errors.New("integration: invalid job state transition")
	ErrJobCancelled          = errors.New("integration: job cancelled")
	ErrExchangeRateNotFound  = errors.New("integration: exchange rate not found")
)

// ValidationError describes a rejected input field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("integration: invalid %s: %s", e.Field, e.Reason)
}

// Is reports ErrValidation as the error's class
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RemoteError wraps a failed call to a platform API with its classification.
type RemoteError struct {
	Platform   PlatformCode
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: HTTP %d: %v", e.Platform, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Platform, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewHTTPError classifies a non-2xx HTTP status from a platform.
func NewHTTPError(platform PlatformCode, op string, statusCode int, detail string) *RemoteError {
	var class error
	switch {
	case statusCode == http.StatusUnauthorized:
		class = ErrUnauthorized
	case statusCode == http.StatusTooManyRequests:
		class = ErrRateLimitExceeded
	case statusCode == http.StatusRequestTimeout || statusCode >= http.StatusInternalServerError:
		class = ErrTransientRemote
	default:
		class = ErrRemoteRejected
	}
	err := class
	if detail != "" {
		err = fmt.Errorf("%w: %s", class, detail)
	}
	return &RemoteError{Platform: platform, Op: op, StatusCode: statusCode, Err: err}
}

// NewTransportError classifies a failure that happened before any HTTP status was received.
// Context cancellation is kept as-is so that it is never retried.
func NewTransportError(platform PlatformCode, op string, err error) *RemoteError {
	if errors.Is(err, context.Canceled) {
		return &RemoteError{Platform: platform, Op: op, Err: err}
	}
	return &RemoteError{Platform: platform, Op: op, Err: fmt.Errorf("%w: %w", ErrTransientRemote, err)}
}

// IsTransient reports whether err is worth retrying: timeouts, 5xx and rate-limit rejections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrMappingNotFound) || errors.Is(err, ErrAuthFailure) {
		return false
	}
	if errors.Is(err, ErrTransientRemote) || errors.Is(err, ErrRateLimitExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsJobFatal reports whether err should fail the whole job instead of one item.
func IsJobFatal(err error) bool {
	return errors.Is(err, ErrAuthFailure) || errors.Is(err, ErrPlatformNotConfigured)
}
