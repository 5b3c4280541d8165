package telemetry

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName    = "seat-rush-http"
	TraceIDHeader = "X-Trace-ID"
)

// health checks run every few seconds and are not traced
var untracedPaths = map[string]bool{
	"/health": true,
	"/ready":  true,
}

// path parameters copied onto the span; transfer tokens are secrets and stay off
var spanParams = map[string]string{
	"id":        "ticket.id",
	"charge_id": "payment.charge_id",
}

// TracingMiddleware opens one server span per API call, named by its route
// template, and tags it with the caller and the seat or charge it acts on.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(TracerName, trace.WithInstrumentationAttributes(attribute.String("service.name", serviceName)))
	propagator := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		if untracedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		route := c.FullPath()
		spanName := c.Request.Method + " " + route
		if route == "" {
			spanName = c.Request.Method + " unmatched"
		}

		attrs := []attribute.KeyValue{
			semconv.HTTPMethod(c.Request.Method),
			semconv.HTTPRoute(route),
			attribute.String("http.client_ip", c.ClientIP()),
		}
		if user := c.GetHeader("X-User-ID"); user != "" {
			attrs = append(attrs, attribute.String("user.id", user))
		}
		if reqID := c.GetString("request_id"); reqID != "" {
			attrs = append(attrs, attribute.String("request.id", reqID))
		}
		for _, p := range c.Params {
			if key, ok := spanParams[p.Key]; ok {
				attrs = append(attrs, attribute.String(key, p.Value))
			}
		}

		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Header(TraceIDHeader, sc.TraceID().String())
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
		if status >= 500 {
			span.SetStatus(codes.Error, c.Errors.String())
		}
	}
}
