package handovers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cargodesk/cargodesk/pkg/locking"
	"github.com/cargodesk/cargodesk/pkg/middleware"
	"github.com/cargodesk/cargodesk/pkg/middleware/testutil"
	"github.com/cargodesk/cargodesk/pkg/repository"
	ginrouter "github.com/cargodesk/cargodesk/pkg/server/router/gin"
)

type fakeRepo struct {
	mu     sync.Mutex
	nextID int64
	notes  map[int64]Note
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{notes: make(map[int64]Note)}
}

func (r *fakeRepo) Create(ctx context.Context, entity *Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entity.ID = r.nextID
	r.notes[entity.ID] = *entity
	return nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id int64) (*Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	note, ok := r.notes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := note
	return &copied, nil
}

func (r *fakeRepo) FindAll(ctx context.Context, opts repository.QueryOptions) ([]Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []Note{}
	for _, note := range r.notes {
		if orderID, ok := opts.Filter["order_id"]; ok && note.OrderID != orderID {
			continue
		}
		if author, ok := opts.Filter["author_id"]; ok && note.AuthorID != author {
			continue
		}
		matched = append(matched, note)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (r *fakeRepo) Count(ctx context.Context, filter repository.Filter) (int64, error) {
	matched, err := r.FindAll(ctx, repository.QueryOptions{Filter: filter})
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (r *fakeRepo) Update(ctx context.Context, entity *Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[entity.ID]; !ok {
		return sql.ErrNoRows
	}
	r.notes[entity.ID] = *entity
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.notes, id)
	return nil
}

func (r *fakeRepo) Exists(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.notes[id]
	return ok, nil
}

type fixture struct {
	repo      *fakeRepo
	lockStore *locking.MemoryStore
	manager   *locking.Manager
	router    http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepo()
	lockStore := locking.NewMemoryStore()
	log := &testutil.MockLogger{}
	manager := locking.NewManager(lockStore, locking.NewMemoryTxManager(lockStore), 300*time.Second, log, nil)

	ctrl := NewController(repo, manager, log)
	r := ginrouter.NewRouter()
	ctrl.RegisterRoutes(r.Group("/handovers"))

	return &fixture{repo: repo, lockStore: lockStore, manager: manager, router: r}
}

func (f *fixture) seed(t *testing.T, note Note) int64 {
	t.Helper()
	if note.OrderID == 0 {
		note.OrderID = 1
	}
	if note.AuthorID == "" {
		note.AuthorID = "alice"
	}
	if err := f.repo.Create(context.Background(), &note); err != nil {
		t.Fatalf("seed note: %v", err)
	}
	return note.ID
}

func (f *fixture) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
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
	if user != "" {
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, user))
	}

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

func TestCreateNote(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/handovers", "alice", map[string]interface{}{
		"order_id":   7,
		"content":    "fridge unit on truck 3 is failing",
		"shift_date": "2026-08-30",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	data, _ := decodeBody(t, rec)["data"].(map[string]interface{})
	if data["author_id"] != "alice" || data["order_id"].(float64) != 7 {
		t.Fatalf("data = %v", data)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]map[string]interface{}{
		"missing order_id":   {"content": "x", "shift_date": "2026-08-30"},
		"missing content":    {"order_id": 7, "shift_date": "2026-08-30"},
		"missing shift_date": {"order_id": 7, "content": "x"},
		"bad date format":    {"order_id": 7, "content": "x", "shift_date": "30/08/26"},
	}
	for name, body := range cases {
		if rec := f.do(t, http.MethodPost, "/handovers", "alice", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestCreateNoteRequiresIdentity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/handovers", "", map[string]interface{}{
		"order_id": 7, "content": "x", "shift_date": "2026-08-30",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestListNotesByOrder(t *testing.T) {
	f := newFixture(t)
	f.seed(t, Note{OrderID: 1, AuthorID: "alice"})
	f.seed(t, Note{OrderID: 2, AuthorID: "alice"})
	f.seed(t, Note{OrderID: 1, AuthorID: "bob"})

	rec := f.do(t, http.MethodGet, "/handovers?order_id=1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	data, _ := decodeBody(t, rec)["data"].(map[string]interface{})
	if data["total"].(float64) != 2 {
		t.Fatalf("data = %v", data)
	}

	rec = f.do(t, http.MethodGet, "/handovers?author_id=bob", "", nil)
	data, _ = decodeBody(t, rec)["data"].(map[string]interface{})
	if data["total"].(float64) != 1 {
		t.Fatalf("data = %v", data)
	}
}

func TestUpdateNoteUnderEditLock(t *testing.T) {
	f := newFixture(t)
	f.seed(t, Note{Content: "original", ShiftDate: time.Now()})

	rec := f.do(t, http.MethodPut, "/handovers/1", "alice", map[string]interface{}{
		"content":    "updated",
		"shift_date": "2026-08-30",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	data, _ := decodeBody(t, rec)["data"].(map[string]interface{})
	if data["content"] != "updated" {
		t.Fatalf("data = %v", data)
	}
	if f.lockStore.Len() != 0 {
		t.Fatalf("lock rows left behind: %d", f.lockStore.Len())
	}
}

func TestUpdateNoteBlockedByEditLock(t *testing.T) {
	f := newFixture(t)
	f.seed(t, Note{Content: "original"})

	if _, err := f.manager.Acquire(context.Background(), "handover:1", locking.LockTypeEdit, "bob"); err != nil {
		t.Fatalf("setup lock: %v", err)
	}

	rec := f.do(t, http.MethodPut, "/handovers/1", "alice", map[string]interface{}{
		"content":    "updated",
		"shift_date": "2026-08-30",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", rec.Code, rec.Body.String())
	}

	note, _ := f.repo.FindByID(context.Background(), 1)
	if note.Content != "original" {
		t.Fatalf("note mutated despite conflict: %+v", note)
	}
}

func TestDeleteNoteRemovesLockRows(t *testing.T) {
	f := newFixture(t)
	f.seed(t, Note{Content: "original"})

	if _, err := f.manager.Acquire(context.Background(), "handover:1", locking.LockTypeEdit, "alice"); err != nil {
		t.Fatalf("setup lock: %v", err)
	}

	rec := f.do(t, http.MethodDelete, "/handovers/1", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if f.lockStore.Len() != 0 {
		t.Fatalf("deleted note left %d lock rows", f.lockStore.Len())
	}
}

func TestNoteLockEndpointsNamespaced(t *testing.T) {
	f := newFixture(t)
	f.seed(t, Note{Content: "original"})

	rec := f.do(t, http.MethodPost, "/handovers/1/lock", "alice", map[string]string{"lock_type": "EDIT"})
	if rec.Code != http.StatusOK {
		t.Fatalf("acquire: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// The lock row is namespaced so it cannot collide with order ids
	state, err := f.manager.Inspect(context.Background(), "handover:1", locking.LockTypeEdit)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !state.IsLocked || state.LockedBy != "alice" {
		t.Fatalf("state = %+v", state)
	}
	if state, _ := f.manager.Inspect(context.Background(), "order:1", locking.LockTypeEdit); state.IsLocked {
		t.Fatal("order namespace must be unaffected")
	}
}
