package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cargodesk/cargodesk/pkg/server/router"
	ginrouter "github.com/cargodesk/cargodesk/pkg/server/router/gin"
)

func newCORSRouter(cfg Config) http.Handler {
	r := ginrouter.NewRouter()
	r.Use(Middleware(cfg))
	r.GET("/orders", func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	r.POST("/orders", func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return r
}

func TestCORS_DisabledPassesThrough(t *testing.T) {
	handler := newCORSRouter(Config{Enabled: false})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected no CORS headers when disabled")
	}
}

func TestCORS_AllowedOrigin(t *testing.T) {
	handler := newCORSRouter(Config{
		Enabled:      true,
		AllowOrigins: []string{"https://admin.example.com"},
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Errorf("expected allow-origin header, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestCORS_PreflightAllowed(t *testing.T) {
	handler := newCORSRouter(Config{
		Enabled:      true,
		AllowOrigins: []string{"https://admin.example.com"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected allow-methods header")
	}
	if rec.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Error("expected allow-headers header")
	}
	if rec.Header().Get("Access-Control-Max-Age") == "" {
		t.Error("expected max-age header")
	}
}

func TestCORS_PreflightRejectedOrigin(t *testing.T) {
	handler := newCORSRouter(Config{
		Enabled:      true,
		AllowOrigins: []string{"https://admin.example.com"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCORS_CredentialsEchoOrigin(t *testing.T) {
	handler := newCORSRouter(Config{
		Enabled:          true,
		AllowOrigins:     []string{"https://admin.example.com"},
		AllowCredentials: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Errorf("expected echoed origin, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected allow-credentials header")
	}
}

func TestCORS_AllowAllDropsCredentials(t *testing.T) {
	handler := newCORSRouter(Config{
		Enabled:          true,
		AllowAllOrigins:  true,
		AllowCredentials: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("expected credentials to be dropped with allow-all")
	}
}
