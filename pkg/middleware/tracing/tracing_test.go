package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/cargodesk/cargodesk/pkg/server/router"
	ginrouter "github.com/cargodesk/cargodesk/pkg/server/router/gin"
)

func newRecordedRouter(t *testing.T, cfg Config, handler router.HandlerFunc) (*tracetest.SpanRecorder, http.Handler) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := ginrouter.NewRouter()
	r.Use(Tracing(cfg))
	r.GET("/orders", handler)
	return recorder, r
}

func TestTracing_CreatesServerSpan(t *testing.T) {
	recorder, handler := newRecordedRouter(t, Config{}, func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].Name(); got != "HTTP GET /orders" {
		t.Errorf("unexpected span name %q", got)
	}

	foundStatus := false
	for _, attr := range spans[0].Attributes() {
		if string(attr.Key) == "http.status_code" && attr.Value.AsInt64() == http.StatusOK {
			foundStatus = true
		}
	}
	if !foundStatus {
		t.Error("expected http.status_code attribute")
	}
}

func TestTracing_ExcludedPathSkipsSpan(t *testing.T) {
	recorder, handler := newRecordedRouter(t, Config{
		ExcludedPathPrefixes: []string{"/orders"},
	}, func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	if got := len(recorder.Ended()); got != 0 {
		t.Fatalf("expected no spans, got %d", got)
	}
}
