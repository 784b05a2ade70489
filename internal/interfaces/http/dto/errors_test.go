package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/storelink/backend/internal/domain/integration"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeUnknown, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeJobAlreadyRunning, http.StatusConflict},
		{ErrCodeMappingIncomplete, http.StatusUnprocessableEntity},
		{ErrCodeTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodePartialFailure, http.StatusMultiStatus},
		{ErrCodeAuthFailure, http.StatusBadGateway},
		{ErrCodeTransientRemote, http.StatusServiceUnavailable},
		{ErrCodePlatformRateLimited, http.StatusServiceUnavailable},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestErrorCodeFormat(t *testing.T) {
	for code := range ErrorCodeHTTPStatus {
		assert.True(t, strings.HasPrefix(code, "ERR_"), code)
		assert.Equal(t, strings.ToUpper(code), code)
	}
}

func TestCodeForError(t *testing.T) {
	remote := integration.NewHTTPError(integration.PlatformShopify, "set_stock", http.StatusBadGateway, "upstream")
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"validation", integration.NewValidationError("sku", "required"), ErrCodeValidation},
		{"wrapped not found", fmt.Errorf("%w: ALBUM-1", integration.ErrMappingNotFound), ErrCodeNotFound},
		{"job not found", integration.ErrJobNotFound, ErrCodeNotFound},
		{"duplicate", integration.ErrMappingAlreadyExists, ErrCodeAlreadyExists},
		{"job running", integration.ErrJobAlreadyRunning, ErrCodeJobAlreadyRunning},
		{"partial", integration.ErrPartialFailure, ErrCodePartialFailure},
		{"auth", integration.ErrAuthFailure, ErrCodeAuthFailure},
		{"remote 5xx", remote, ErrCodeTransientRemote},
		{"remote 4xx", integration.NewHTTPError(integration.PlatformSmartStore, "get", http.StatusBadRequest, ""), ErrCodeRemoteRejected},
		{"rate limit", integration.ErrRateLimitExceeded, ErrCodePlatformRateLimited},
		{"unknown", errors.New("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeForError(tt.err))
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("NOT_FOUND", "Resource not found")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code) // Should be normalized
	assert.Equal(t, "Resource not found", resp.Error.Message)
	assert.NotZero(t, resp.Error.Timestamp)
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Mapping not found", "req-123-456")

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "req-123-456", resp.Error.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "sku", Message: "This field is required"},
		{Field: "amount", Message: "Must be at least 0"},
	}

	resp := NewValidationErrorResponse("Validation failed", "req-789", details)

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "sku", resp.Error.Details[0].Field)
}

func TestNewErrorResponseWithHelp(t *testing.T) {
	help := "https://docs.example.com/errors/platform-auth"
	resp := NewErrorResponseWithHelp(ErrCodeAuthFailure, "Credentials rejected", "req-001", help)

	assert.Equal(t, ErrCodeAuthFailure, resp.Error.Code)
	assert.Equal(t, help, resp.Error.Help)
}

func TestNewPartialResponse(t *testing.T) {
	data := map[string]string{"SHOPIFY": "failed"}
	resp := NewPartialResponse(data, "1 of 2 platforms failed", "req-2")

	assert.False(t, resp.Success)
	assert.Equal(t, data, resp.Data)
	assert.Equal(t, ErrCodePartialFailure, resp.Error.Code)
	assert.Equal(t, http.StatusMultiStatus, GetHTTPStatus(resp.Error.Code))
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Job not found", "req-test-123")

	data, err := json.Marshal(resp)
	assert.NoError(t, err)

	var decoded Response
	err = json.Unmarshal(data, &decoded)
	assert.NoError(t, err)

	assert.False(t, decoded.Success)
	assert.Equal(t, ErrCodeNotFound, decoded.Error.Code)
	assert.Equal(t, "req-test-123", decoded.Error.RequestID)
}

func TestErrorResponseTimestamp(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponse(ErrCodeInternal, "Server error")
	after := time.Now()

	assert.False(t, resp.Error.Timestamp.Before(before))
	assert.False(t, resp.Error.Timestamp.After(after))
}

func TestNewSuccessResponseWithMetaPagination(t *testing.T) {
	tests := []struct {
		total         int64
		page          int
		pageSize      int
		expectedPages int
		expectedSize  int
	}{
		{100, 1, 10, 10, 10},
		{101, 1, 10, 11, 10},
		{0, 1, 10, 0, 10},
		{9, 1, 10, 1, 10},
		{11, 1, 10, 2, 10},
		// Edge case: zero pageSize should default to 20
		{100, 1, 0, 5, 20},
		{100, 1, -1, 5, 20},
	}

	for _, tt := range tests {
		resp := NewSuccessResponseWithMeta(nil, tt.total, tt.page, tt.pageSize)
		assert.True(t, resp.Success)
		assert.Equal(t, tt.expectedPages, resp.Meta.TotalPages)
		assert.Equal(t, tt.expectedSize, resp.Meta.PageSize)
	}
}

func TestListRequest_Normalize(t *testing.T) {
	req := ListRequest{}
	req.Normalize()
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, DefaultPageSize, req.PageSize)

	req = ListRequest{Page: 3, PageSize: 5}
	req.Normalize()
	assert.Equal(t, 3, req.Page)
	assert.Equal(t, 5, req.PageSize)
}
