package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cargodesk/cargodesk/pkg/controller"
	"github.com/cargodesk/cargodesk/pkg/server/router"
	ginrouter "github.com/cargodesk/cargodesk/pkg/server/router/gin"
)

func newLimitedRouter(limiter RateLimiter) http.Handler {
	r := ginrouter.NewRouter()
	r.Use(RateLimit(limiter, Config{
		RequestsPerSecond: 1,
		Burst:             2,
		KeyFunc: func(c router.Context) string {
			return ExtractIPFromRequest(c.Request())
		},
	}))
	r.GET("/orders", func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return r
}

func TestTokenBucketLimiter_EnforcesBurst(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 2)

	if !limiter.Allow("10.0.0.1") {
		t.Fatal("first request should pass")
	}
	if !limiter.Allow("10.0.0.1") {
		t.Fatal("second request within burst should pass")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("third request should be limited")
	}
	// independent keys have independent buckets
	if !limiter.Allow("10.0.0.2") {
		t.Fatal("different key should pass")
	}
}

func TestRateLimit_Returns429WithEnvelope(t *testing.T) {
	handler := newLimitedRouter(NewTokenBucketLimiter(1, 1))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	var body controller.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ErrorCode != controller.CodeRateLimited {
		t.Errorf("expected %s, got %s", controller.CodeRateLimited, body.ErrorCode)
	}
}

func TestExtractIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4321"
	if got := ExtractIPFromRequest(req); got != "192.0.2.1" {
		t.Errorf("expected RemoteAddr IP, got %q", got)
	}

	req.Header.Set("X-Real-IP", "198.51.100.7")
	if got := ExtractIPFromRequest(req); got != "198.51.100.7" {
		t.Errorf("expected X-Real-IP, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 198.51.100.7")
	if got := ExtractIPFromRequest(req); got != "203.0.113.5" {
		t.Errorf("expected first X-Forwarded-For entry, got %q", got)
	}
}
