package logging

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cargodesk/cargodesk/pkg/middleware/testutil"
	"github.com/cargodesk/cargodesk/pkg/server/router"
	ginrouter "github.com/cargodesk/cargodesk/pkg/server/router/gin"
)

func serve(t *testing.T, mw router.MiddlewareFunc, handler router.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()

	r := ginrouter.NewRouter()
	r.Use(mw)
	r.GET(path, handler)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLogging_LogsCompletedRequest(t *testing.T) {
	log := &testutil.MockLogger{}

	serve(t, Logging(log), func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	}, "/orders")

	if len(log.Logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(log.Logs))
	}
	entry := log.Logs[0]
	if entry.Msg != "request completed" {
		t.Errorf("unexpected message %q", entry.Msg)
	}
	if entry.Fields["method"] != http.MethodGet {
		t.Errorf("expected method field, got %v", entry.Fields["method"])
	}
	if entry.Fields["path"] != "/orders" {
		t.Errorf("expected path field, got %v", entry.Fields["path"])
	}
	if entry.Fields["status"] != http.StatusOK {
		t.Errorf("expected status field, got %v", entry.Fields["status"])
	}
}

func TestLogging_LogsFailedRequestAtErrorLevel(t *testing.T) {
	log := &testutil.MockLogger{}

	serve(t, Logging(log), func(c router.Context) error {
		return errors.New("boom")
	}, "/orders")

	if len(log.Logs) == 0 {
		t.Fatal("expected log entries")
	}
	entry := log.Logs[len(log.Logs)-1]
	if entry.Level != "error" || entry.Msg != "request failed" {
		t.Errorf("expected error entry, got level=%s msg=%s", entry.Level, entry.Msg)
	}
	if entry.Fields["error"] == nil {
		t.Error("expected error field")
	}
}

func TestLogging_ExcludedPathPrefix(t *testing.T) {
	log := &testutil.MockLogger{}
	cfg := DefaultConfig()
	cfg.ExcludedPathPrefixes = []string{"/health"}

	serve(t, WithConfig(log, cfg), func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	}, "/health/live")

	if len(log.Logs) != 0 {
		t.Errorf("expected no log entries for excluded path, got %d", len(log.Logs))
	}
}

func TestLogging_PathPolicyOffSilencesPrefix(t *testing.T) {
	log := &testutil.MockLogger{}
	cfg := DefaultConfig()
	cfg.PathPolicies = []PathPolicy{{Prefix: "/metrics", Mode: ModeOff}}

	serve(t, WithConfig(log, cfg), func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	}, "/metrics")

	if len(log.Logs) != 0 {
		t.Errorf("expected no log entries, got %d", len(log.Logs))
	}
}

func TestLogging_FullModeIncludesClientDetails(t *testing.T) {
	log := &testutil.MockLogger{}
	cfg := DefaultConfig()
	cfg.PathPolicies = []PathPolicy{{Prefix: "/orders", Mode: ModeFull}}

	serve(t, WithConfig(log, cfg), func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	}, "/orders")

	if len(log.Logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(log.Logs))
	}
	if _, ok := log.Logs[0].Fields["remote_addr"]; !ok {
		t.Error("expected remote_addr field in full mode")
	}
}

func TestLogging_DisabledLogsNothing(t *testing.T) {
	log := &testutil.MockLogger{}
	cfg := DefaultConfig()
	cfg.Enabled = false

	serve(t, WithConfig(log, cfg), func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	}, "/orders")

	if len(log.Logs) != 0 {
		t.Errorf("expected no log entries, got %d", len(log.Logs))
	}
}
