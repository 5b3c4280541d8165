package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedRouter(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := gin.New()
	r.Use(TracingMiddleware("test"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/payments/:charge_id/capture", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	r.POST("/transfers/:token/receive", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, recorder
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]string {
	out := map[attribute.Key]string{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value.Emit()
	}
	return out
}

func TestTracingMiddleware_NamesSpanByRoute(t *testing.T) {
	r, recorder := newTracedRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/payments/pi_1/capture", nil)
	req.Header.Set("X-User-ID", "alice")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /payments/:charge_id/capture", spans[0].Name())
	assert.NotEmpty(t, w.Header().Get(TraceIDHeader))

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "alice", attrs["user.id"])
	assert.Equal(t, "pi_1", attrs["payment.charge_id"])
	assert.Equal(t, "502", attrs["http.status_code"])
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracingMiddleware_KeepsTransferTokenOff(t *testing.T) {
	r, recorder := newTracedRouter(t)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/transfers/secret-token/receive", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	for _, kv := range spans[0].Attributes() {
		assert.NotContains(t, kv.Value.Emit(), "secret-token", string(kv.Key))
	}
}

func TestTracingMiddleware_SkipsHealthChecks(t *testing.T) {
	r, recorder := newTracedRouter(t)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Empty(t, recorder.Ended())
}
