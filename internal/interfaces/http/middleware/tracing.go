package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/infrastructure/telemetry"
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

// Tracing returns the otelgin middleware that opens one server span per request.
// The span name follows "HTTP METHOD route_pattern".
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanEnricher tags the request span with request, actor and item identifiers
// and marks it as failed for error responses. Place it after JWTAuth.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if actor := GetActor(c); actor.ID != "" {
			span.SetAttributes(
				attribute.String("actor.id", actor.ID),
				attribute.String("actor.role", string(actor.Role)),
			)
		}
		if itemID := c.Param("itemId"); itemID != "" {
			span.SetAttributes(telemetry.SpanAttrItemID.String(itemID))
		}

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		switch {
		case status >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, "Internal Server Error")
		case status == http.StatusUnauthorized:
			span.SetStatus(codes.Error, "Unauthorized")
		case status == http.StatusForbidden:
			span.SetStatus(codes.Error, "Forbidden")
		case status == http.StatusNotFound:
			span.SetStatus(codes.Error, "Not Found")
		default:
			span.SetStatus(codes.Error, "Client Error")
		}
	}
}
