package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing returns the otelgin middleware followed by a handler that tags the
// server span with the request ID and, once the request is done, the error
// status of 4xx and 5xx answers. Register both with engine.Use(Tracing(...)...).
func Tracing(serviceName string, enabled bool) gin.HandlersChain {
	if !enabled {
		return gin.HandlersChain{passThrough}
	}
	return gin.HandlersChain{otelgin.Middleware(serviceName), spanEnricher}
}

func spanEnricher(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		c.Next()
		return
	}

	if requestID := GetRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}

	c.Next()

	status := c.Writer.Status()
	if status < http.StatusBadRequest {
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	if last := c.Errors.Last(); last != nil {
		span.RecordError(last.Err)
	}
	span.SetStatus(codes.Error, http.StatusText(status))
}
