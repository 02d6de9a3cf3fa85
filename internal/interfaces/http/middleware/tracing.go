// Package middleware provides the gin middleware of the HTTP API: bearer
// authentication, tenant admission, strict re-verification and the ambient
// concerns around them.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mise/backend/internal/domain/tenancy"
	"github.com/mise/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "mise-backend",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig wraps otelgin. Span names follow "METHOD route", e.g.
// "POST /api/v1/orders/:id/void".
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TenantSpanAttributes tags the request span with the admitted tenant, user
// and request id. Place it after IsolationGate; headers are never trusted
// for these attributes.
func TenantSpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span := trace.SpanFromContext(ctx)
		if rc, ok := tenancy.FromContext(ctx); ok && span.IsRecording() {
			span.SetAttributes(
				attribute.String(telemetry.SpanAttrTenantID, rc.TenantID()),
				attribute.String(telemetry.SpanAttrRequestID, rc.RequestID()),
			)
			if rc.UserID() != "" {
				span.SetAttributes(attribute.String(telemetry.SpanAttrUserID, rc.UserID()))
			}
		}
		c.Next()
	}
}

// SpanErrorMarker marks the span as failed for 4xx and 5xx responses. Place
// it after Tracing.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}
