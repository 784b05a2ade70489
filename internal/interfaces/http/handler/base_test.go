package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/interfaces/http/dto"
	"github.com/storelink/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	c, _ := newTestContext()
	assert.Empty(t, getRequestID(c))

	c.Request.Header.Set(middleware.RequestIDHeader, "header-id")
	assert.Equal(t, "header-id", getRequestID(c))

	c.Set(middleware.RequestIDKey, "ctx-id")
	assert.Equal(t, "ctx-id", getRequestID(c))
}

func TestBaseHandlerSuccessResponses(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name         string
		send         func(*gin.Context)
		expectedCode int
	}{
		{"Success", func(c *gin.Context) { h.Success(c, gin.H{"sku": "ALBUM-001"}) }, http.StatusOK},
		{"Created", func(c *gin.Context) { h.Created(c, gin.H{"sku": "ALBUM-001"}) }, http.StatusCreated},
		{"Accepted", func(c *gin.Context) { h.Accepted(c, gin.H{"state": "pending"}) }, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext()
			tt.send(c)

			assert.Equal(t, tt.expectedCode, w.Code)
			resp := decodeResponse(t, w)
			assert.True(t, resp.Success)
			assert.NotNil(t, resp.Data)
		})
	}
}

func TestBaseHandlerSuccessWithMeta(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext()

	h.SuccessWithMeta(c, []string{"a", "b"}, 45, 2, 20)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}

func TestBaseHandlerNoContent(t *testing.T) {
	h := &BaseHandler{}

	router := gin.New()
	router.DELETE("/test", func(c *gin.Context) {
		h.NoContent(c)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/test", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestBaseHandlerPartial(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext()
	c.Set(middleware.RequestIDKey, "req-207")

	h.Partial(c, gin.H{"outcome": "partial"}, fmt.Errorf("%w: SHOPIFY failed", integration.ErrPartialFailure))

	assert.Equal(t, http.StatusMultiStatus, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Equal(t, dto.ErrCodePartialFailure, resp.Error.Code)
	assert.Equal(t, "req-207", resp.Error.RequestID)
}

func TestBaseHandlerErrorMethods(t *testing.T) {
	tests := []struct {
		name         string
		method       func(*BaseHandler, *gin.Context)
		expectedCode int
		expectedErr  string
	}{
		{"BadRequest", func(h *BaseHandler, c *gin.Context) { h.BadRequest(c, "bad") }, http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"NotFound", func(h *BaseHandler, c *gin.Context) { h.NotFound(c, "missing") }, http.StatusNotFound, dto.ErrCodeNotFound},
		{"Conflict", func(h *BaseHandler, c *gin.Context) { h.Conflict(c, "conflict") }, http.StatusConflict, dto.ErrCodeConflict},
		{"InternalError", func(h *BaseHandler, c *gin.Context) { h.InternalError(c, "boom") }, http.StatusInternalServerError, dto.ErrCodeInternal},
		{"ErrorWithCode", func(h *BaseHandler, c *gin.Context) {
			h.ErrorWithCode(c, dto.ErrCodeTransientRemote, "SmartStore unavailable")
		}, http.StatusServiceUnavailable, dto.ErrCodeTransientRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext()
			tt.method(&BaseHandler{}, c)

			assert.Equal(t, tt.expectedCode, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.expectedErr, resp.Error.Code)
		})
	}
}

func TestBaseHandlerValidationError(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext()
	c.Set(middleware.RequestIDKey, "val-req-456")

	h.ValidationError(c, []dto.ValidationDetail{
		{Field: "sku", Message: "This field is required"},
		{Field: "amount", Message: "Must be at least 0"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "val-req-456", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 2)
}

func TestBaseHandlerHandleError(t *testing.T) {
	remote := integration.NewHTTPError(integration.PlatformShopify, "inventory.set", http.StatusBadGateway, "bad gateway")

	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedErr  string
		hidesMessage bool
	}{
		{"mapping not found", fmt.Errorf("adjust: %w", integration.ErrMappingNotFound), http.StatusNotFound, dto.ErrCodeNotFound, false},
		{"job not found", integration.ErrJobNotFound, http.StatusNotFound, dto.ErrCodeNotFound, false},
		{"duplicate mapping", integration.ErrMappingAlreadyExists, http.StatusConflict, dto.ErrCodeAlreadyExists, false},
		{"job already running", integration.ErrJobAlreadyRunning, http.StatusConflict, dto.ErrCodeJobAlreadyRunning, false},
		{"terminal job", integration.ErrInvalidJobTransition, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, false},
		{"auth failure", integration.ErrAuthFailure, http.StatusBadGateway, dto.ErrCodeAuthFailure, false},
		{"rate limited", integration.ErrRateLimitExceeded, http.StatusServiceUnavailable, dto.ErrCodePlatformRateLimited, false},
		{"transient remote", remote, http.StatusServiceUnavailable, dto.ErrCodeTransientRemote, false},
		{"not configured", integration.ErrPlatformNotConfigured, http.StatusServiceUnavailable, dto.ErrCodePlatformNotConfigured, false},
		{"unknown error", errors.New("pq: connection refused"), http.StatusInternalServerError, dto.ErrCodeInternal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext()
			(&BaseHandler{}).HandleError(c, tt.err)

			assert.Equal(t, tt.expectedCode, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.expectedErr, resp.Error.Code)
			if tt.hidesMessage {
				assert.Equal(t, "An unexpected error occurred", resp.Error.Message)
			}
			assert.Len(t, c.Errors, 1)
		})
	}
}

func TestBaseHandlerHandleError_FieldValidation(t *testing.T) {
	c, w := newTestContext()

	(&BaseHandler{}).HandleError(c, fmt.Errorf("create: %w", integration.NewValidationError("listings.SHOPIFY.currency", "must be 3 letters")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "listings.SHOPIFY.currency", resp.Error.Details[0].Field)
}

func TestBaseHandlerHandleError_Nil(t *testing.T) {
	c, w := newTestContext()
	(&BaseHandler{}).HandleError(c, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestQueryInt(t *testing.T) {
	c, _ := newTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=3&limit=-1&size=x", nil)

	page, err := queryInt(c, "page", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page)

	def, err := queryInt(c, "missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, def)

	_, err = queryInt(c, "limit", 1)
	assert.ErrorIs(t, err, integration.ErrValidation)
	_, err = queryInt(c, "size", 1)
	assert.ErrorIs(t, err, integration.ErrValidation)
}
