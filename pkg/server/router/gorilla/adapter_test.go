package gorilla

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cargodesk/cargodesk/pkg/server/router"
)

func TestGorillaRouterParamConversion(t *testing.T) {
	r := NewRouter()
	r.GET("/orders/:id/lock", func(c router.Context) error {
		return c.String(http.StatusOK, c.Param("id"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/7/lock", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "7" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestGorillaRouterGroup(t *testing.T) {
	r := NewRouter()
	var order []string
	mw := func(name string) router.MiddlewareFunc {
		return func(next router.HandlerFunc) router.HandlerFunc {
			return func(c router.Context) error {
				order = append(order, name)
				return next(c)
			}
		}
	}
	r.Use(mw("global"))
	api := r.Group("/api/v1", mw("group"))
	api.GET("/orders", func(c router.Context) error {
		order = append(order, "handler")
		return c.String(http.StatusOK, "[]")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	if got := strings.Join(order, ","); got != "global,group,handler" {
		t.Fatalf("middleware order = %s", got)
	}
}
