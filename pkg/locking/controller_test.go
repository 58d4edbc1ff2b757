package locking

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cargodesk/cargodesk/pkg/middleware"
	ginrouter "github.com/cargodesk/cargodesk/pkg/server/router/gin"
)

type controllerFixture struct {
	*managerFixture
	router http.Handler
}

func newControllerFixture(t *testing.T, exists ExistsFunc) *controllerFixture {
	t.Helper()
	f := newFixture(t, 300*time.Second)

	ctrl := NewController(f.manager, "order", exists, f.manager.logger)

	r := ginrouter.NewRouter()
	group := r.Group("/orders")
	ctrl.RegisterRoutes(group)

	return &controllerFixture{managerFixture: f, router: r}
}

func (f *controllerFixture) do(t *testing.T, method, path, user, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	ctx := req.Context()
	if user != "" {
		ctx = context.WithValue(ctx, middleware.UserIDKey, user)
	}
	if role != "" {
		ctx = context.WithValue(ctx, middleware.UserRoleKey, role)
	}
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func allExist(ctx context.Context, id string) (bool, error) { return true, nil }

func TestLockController_AcquireSuccess(t *testing.T) {
	f := newControllerFixture(t, allExist)

	rec := f.do(t, http.MethodPost, "/orders/42/lock", "alice", "", map[string]string{"lock_type": "EDIT"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
	data, _ := body["data"].(map[string]interface{})
	if data["locked_by"] != "alice" {
		t.Fatalf("data = %v", data)
	}
	if data["expires_at"] == nil || data["acquired_at"] == nil {
		t.Fatalf("missing timestamps: %v", data)
	}
}

func TestLockController_AcquireConflictReturns409(t *testing.T) {
	f := newControllerFixture(t, allExist)

	if rec := f.do(t, http.MethodPost, "/orders/42/lock", "alice", "", map[string]string{"lock_type": "EDIT"}); rec.Code != http.StatusOK {
		t.Fatalf("setup acquire failed: %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/orders/42/lock", "bob", "", map[string]string{"lock_type": "EDIT"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["success"] != false || body["error_code"] != "LOCK_CONFLICT" {
		t.Fatalf("body = %v", body)
	}
	data, _ := body["data"].(map[string]interface{})
	if data["locked_by"] != "alice" || data["expires_at"] == nil {
		t.Fatalf("conflict payload = %v", data)
	}
}

func TestLockController_AcquireRejectsUnknownLockType(t *testing.T) {
	f := newControllerFixture(t, allExist)

	rec := f.do(t, http.MethodPost, "/orders/42/lock", "alice", "", map[string]string{"lock_type": "WRITE"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error_code"] != "VALIDATION_ERROR" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestLockController_AcquireRequiresIdentity(t *testing.T) {
	f := newControllerFixture(t, allExist)

	rec := f.do(t, http.MethodPost, "/orders/42/lock", "", "", map[string]string{"lock_type": "EDIT"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLockController_AcquireMissingResource(t *testing.T) {
	f := newControllerFixture(t, func(ctx context.Context, id string) (bool, error) {
		return false, nil
	})

	rec := f.do(t, http.MethodPost, "/orders/404/lock", "alice", "", map[string]string{"lock_type": "EDIT"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error_code"] != "NOT_FOUND" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestLockController_ReleaseIsIdempotent(t *testing.T) {
	f := newControllerFixture(t, allExist)

	// Releasing a lock that was never acquired still succeeds
	rec := f.do(t, http.MethodDelete, "/orders/42/lock?type=EDIT", "alice", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestLockController_ReleaseByNonHolderConflicts(t *testing.T) {
	f := newControllerFixture(t, allExist)

	if rec := f.do(t, http.MethodPost, "/orders/42/lock", "alice", "", map[string]string{"lock_type": "EDIT"}); rec.Code != http.StatusOK {
		t.Fatalf("setup acquire failed: %d", rec.Code)
	}

	rec := f.do(t, http.MethodDelete, "/orders/42/lock?type=EDIT", "bob", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestLockController_ForceReleaseRequiresAdmin(t *testing.T) {
	f := newControllerFixture(t, allExist)

	if rec := f.do(t, http.MethodPost, "/orders/42/lock", "alice", "", map[string]string{"lock_type": "EDIT"}); rec.Code != http.StatusOK {
		t.Fatalf("setup acquire failed: %d", rec.Code)
	}

	rec := f.do(t, http.MethodDelete, "/orders/42/lock?type=EDIT&force=true", "bob", "DISPATCHER", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/orders/42/lock?type=EDIT&force=true", "bob", "ADMIN", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin force release: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Lock is gone
	rec = f.do(t, http.MethodGet, "/orders/42/lock?type=EDIT", "bob", "", nil)
	body := decodeBody(t, rec)
	data, _ := body["data"].(map[string]interface{})
	if data["is_locked"] != false {
		t.Fatalf("lock should be gone: %v", data)
	}
}

func TestLockController_Inspect(t *testing.T) {
	f := newControllerFixture(t, allExist)

	rec := f.do(t, http.MethodGet, "/orders/42/lock?type=EDIT", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	data, _ := body["data"].(map[string]interface{})
	if data["is_locked"] != false {
		t.Fatalf("data = %v", data)
	}

	if rec := f.do(t, http.MethodPost, "/orders/42/lock", "alice", "", map[string]string{"lock_type": "EDIT"}); rec.Code != http.StatusOK {
		t.Fatalf("setup acquire failed: %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/orders/42/lock?type=EDIT", "", "", nil)
	body = decodeBody(t, rec)
	data, _ = body["data"].(map[string]interface{})
	if data["is_locked"] != true || data["locked_by"] != "alice" {
		t.Fatalf("data = %v", data)
	}
}

func TestLockController_BatchAcquireAllOrNothing(t *testing.T) {
	f := newControllerFixture(t, allExist)

	if rec := f.do(t, http.MethodPost, "/orders/2/lock", "bob", "", map[string]string{"lock_type": "STATUS"}); rec.Code != http.StatusOK {
		t.Fatalf("setup acquire failed: %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/orders/locks", "alice", "", map[string]interface{}{
		"resource_ids": []string{"1", "2", "3"},
		"lock_type":    "STATUS",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", rec.Code, rec.Body.String())
	}

	// 1 and 3 must remain unlocked
	for _, id := range []string{"1", "3"} {
		rec := f.do(t, http.MethodGet, "/orders/"+id+"/lock?type=STATUS", "", "", nil)
		data, _ := decodeBody(t, rec)["data"].(map[string]interface{})
		if data["is_locked"] != false {
			t.Fatalf("order %s must be unlocked after failed batch", id)
		}
	}
}

func TestLockController_BatchAcquireSuccessAndBatchRelease(t *testing.T) {
	f := newControllerFixture(t, allExist)

	rec := f.do(t, http.MethodPost, "/orders/locks", "alice", "", map[string]interface{}{
		"resource_ids": []string{"1", "2", "3"},
		"lock_type":    "ASSIGN",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	data, _ := decodeBody(t, rec)["data"].(map[string]interface{})
	locks, _ := data["locks"].([]interface{})
	if len(locks) != 3 {
		t.Fatalf("got %d locks, want 3", len(locks))
	}

	rec = f.do(t, http.MethodDelete, "/orders/locks", "alice", "", map[string]interface{}{
		"resource_ids": []string{"1", "2", "3"},
		"lock_type":    "ASSIGN",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("batch release: status = %d", rec.Code)
	}

	for _, id := range []string{"1", "2", "3"} {
		rec := f.do(t, http.MethodGet, "/orders/"+id+"/lock?type=ASSIGN", "", "", nil)
		data, _ := decodeBody(t, rec)["data"].(map[string]interface{})
		if data["is_locked"] != false {
			t.Fatalf("order %s should be unlocked", id)
		}
	}
}
