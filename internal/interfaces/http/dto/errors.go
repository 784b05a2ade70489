package dto

import (
	"errors"
	"net/http"

	"github.com/storelink/backend/internal/domain/integration"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
	ErrCodeValidationRange    = "ERR_VALIDATION_RANGE"
)

// Resource error codes
const (
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	ErrCodeConflict      = "ERR_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeMappingIncomplete is used when a platform reference is missing
	ErrCodeMappingIncomplete = "ERR_MAPPING_INCOMPLETE"
	// ErrCodeJobAlreadyRunning is used when a conflicting sync job is active
	ErrCodeJobAlreadyRunning = "ERR_JOB_ALREADY_RUNNING"
)

// Input error codes
const (
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeTooLarge     = "ERR_REQUEST_TOO_LARGE"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when the API's own request budget is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Platform error codes
const (
	// ErrCodePartialFailure is used when some platforms applied a change and others did not
	ErrCodePartialFailure = "ERR_PARTIAL_FAILURE"
	// ErrCodeAuthFailure is used when platform credentials were rejected
	ErrCodeAuthFailure = "ERR_PLATFORM_AUTH"
	// ErrCodePlatformRateLimited is used when a platform budget could not be absorbed
	ErrCodePlatformRateLimited = "ERR_PLATFORM_RATE_LIMITED"
	// ErrCodeTransientRemote is used for platform timeouts and 5xx answers
	ErrCodeTransientRemote = "ERR_PLATFORM_UNAVAILABLE"
	// ErrCodeRemoteRejected is used when a platform refused the request
	ErrCodeRemoteRejected = "ERR_PLATFORM_REJECTED"
	// ErrCodePlatformNotConfigured is used when a platform has no credentials configured
	ErrCodePlatformNotConfigured = "ERR_PLATFORM_NOT_CONFIGURED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeConflict:      http.StatusConflict,

	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeMappingIncomplete: http.StatusUnprocessableEntity,
	ErrCodeJobAlreadyRunning: http.StatusConflict,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,

	ErrCodeRateLimited: http.StatusTooManyRequests,

	ErrCodePartialFailure:        http.StatusMultiStatus,
	ErrCodeAuthFailure:           http.StatusBadGateway,
	ErrCodePlatformRateLimited:   http.StatusServiceUnavailable,
	ErrCodeTransientRemote:       http.StatusServiceUnavailable,
	ErrCodeRemoteRejected:        http.StatusBadGateway,
	ErrCodePlatformNotConfigured: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// taxonomy is checked in order; the first match wins
var taxonomy = []struct {
	target error
	code   string
}{
	{integration.ErrValidation, ErrCodeValidation},
	{integration.ErrMappingNotFound, ErrCodeNotFound},
	{integration.ErrJobNotFound, ErrCodeNotFound},
	{integration.ErrExchangeRateNotFound, ErrCodeNotFound},
	{integration.ErrMappingDeleted, ErrCodeNotFound},
	{integration.ErrMappingAlreadyExists, ErrCodeAlreadyExists},
	{integration.ErrJobAlreadyRunning, ErrCodeJobAlreadyRunning},
	{integration.ErrInvalidJobTransition, ErrCodeInvalidState},
	{integration.ErrMappingIncomplete, ErrCodeMappingIncomplete},
	{integration.ErrPartialFailure, ErrCodePartialFailure},
	{integration.ErrPlatformNotConfigured, ErrCodePlatformNotConfigured},
	{integration.ErrAuthFailure, ErrCodeAuthFailure},
	{integration.ErrUnauthorized, ErrCodeAuthFailure},
	{integration.ErrRateLimitExceeded, ErrCodePlatformRateLimited},
	{integration.ErrTransientRemote, ErrCodeTransientRemote},
	{integration.ErrRemoteRejected, ErrCodeRemoteRejected},
}

// CodeForError classifies a sync error into an API error code.
// It returns ErrCodeInternal when err belongs to no known class.
func CodeForError(err error) string {
	for _, t := range taxonomy {
		if errors.Is(err, t.target) {
			return t.code
		}
	}
	return ErrCodeInternal
}
