package middleware

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

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

func tracedRouter(cfg TracingConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), TracingWithConfig(cfg), SpanEnricher())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/load/references/:code", func(c *gin.Context) {
		if c.Param("code") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})
	return router
}

func hasAttr(span sdktrace.ReadOnlySpan, kv attribute.KeyValue) bool {
	for _, a := range span.Attributes() {
		if a == kv {
			return true
		}
	}
	return false
}

func TestTracing_Disabled(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(TracingConfig{ServiceName: "load-engine"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/load/references/D3RJ0", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_RecordsServerSpan(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(DefaultTracingConfig("load-engine"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/load/references/D3RJ0", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Name(), "/api/v1/load/references/:code")
	assert.True(t, hasAttr(spans[0], attribute.String("request_id", "req-7")))
	assert.True(t, hasAttr(spans[0], attribute.String("user_id", "user-1")))
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_MarksClientErrors(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(DefaultTracingConfig("load-engine"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/load/references/missing", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "Not Found", spans[0].Status().Description)
}

func TestTracing_SkipsHealth(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(DefaultTracingConfig("load-engine"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}
