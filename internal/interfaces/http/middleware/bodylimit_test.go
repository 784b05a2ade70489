package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storelink/backend/internal/interfaces/http/dto"
)

func newBodyLimitRouter(limit int64) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(RequestIDKey, "req-body")
		c.Next()
	})
	router.Use(BodyLimit(limit))
	router.POST("/api/v1/inventory/adjust", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusBadRequest, "body too large")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	return router
}

func TestBodyLimit(t *testing.T) {
	t.Run("allows request within limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/adjust", strings.NewReader(`{"sku":"ALBUM-001"}`))
		w := httptest.NewRecorder()
		newBodyLimitRouter(1024).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects declared length over the limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/adjust", strings.NewReader(strings.Repeat("x", 200)))
		req.ContentLength = 200
		w := httptest.NewRecorder()
		newBodyLimitRouter(100).ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeTooLarge, resp.Error.Code)
		assert.Equal(t, "req-body", resp.Error.RequestID)
	})

	t.Run("cuts off streamed bodies while reading", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/adjust", strings.NewReader(strings.Repeat("x", 100)))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		newBodyLimitRouter(50).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("zero limit disables the check", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/adjust", strings.NewReader(strings.Repeat("x", 4096)))
		w := httptest.NewRecorder()
		newBodyLimitRouter(0).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
