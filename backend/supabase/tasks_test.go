package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"caltodo/backend"
	"caltodo/model"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, "anon-key", nil)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	return c, srv
}

func TestListBuildsScopedOrderedQuery(t *testing.T) {
	var gotPath, gotUser, gotOrder, gotKey string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser = r.URL.Query().Get("user_id")
		gotOrder = r.URL.Query().Get("order")
		gotKey = r.Header.Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"t1","text":"ship","priority":"high","completed":false,"task_date":"2024-03-15","user_id":"u1","created_at":"2024-03-15T10:00:00Z","updated_at":"2024-03-15T10:00:00Z"}
		]`))
	}))

	tasks, err := c.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if gotPath != "/rest/v1/tasks" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotUser != "eq.u1" || gotOrder != "created_at.desc" {
		t.Fatalf("unexpected query: user_id=%q order=%q", gotUser, gotOrder)
	}
	if gotKey != "anon-key" {
		t.Fatalf("expected apikey header, got %q", gotKey)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" || tasks[0].Priority != model.PriorityHigh {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestCreateRejectsEmptyTextLocally(t *testing.T) {
	called := false
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := c.Create(context.Background(), backend.TaskInsert{Text: "   "})
	if !errors.Is(err, backend.ErrEmptyTask) {
		t.Fatalf("expected ErrEmptyTask, got %v", err)
	}
	if called {
		t.Fatalf("expected no remote call for empty text")
	}
}

func TestCreateReturnsRepresentation(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Prefer"); got != "return=representation" {
			t.Errorf("expected Prefer header, got %q", got)
		}
		var row map[string]any
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if row["text"] != "buy milk" || row["priority"] != "medium" {
			t.Errorf("unexpected insert body: %v", row)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":"t9","text":"buy milk","priority":"medium","completed":false,"task_date":"2024-03-15","user_id":"u1","created_at":"2024-03-15T10:00:00Z","updated_at":"2024-03-15T10:00:00Z"}]`))
	}))

	task, err := c.Create(context.Background(), backend.TaskInsert{
		Text:     " buy milk ",
		Priority: model.PriorityMedium,
		Date:     "2024-03-15",
		UserID:   "u1",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if task.ID != "t9" || task.Text != "buy milk" {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		if got := r.URL.Query().Get("id"); got != "eq.missing" {
			t.Errorf("unexpected id filter %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))

	completed := true
	_, err := c.Update(context.Background(), "missing", backend.TaskUpdate{Completed: &completed})
	if !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTargetsRowByID(t *testing.T) {
	var gotID string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		gotID = r.URL.Query().Get("id")
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.Delete(context.Background(), "t3"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if gotID != "eq.t3" {
		t.Fatalf("unexpected id filter %q", gotID)
	}
}

func TestBackendErrorMessageIsSurfaced(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"duplicate key value violates unique constraint"}`))
	}))

	_, err := c.Create(context.Background(), backend.TaskInsert{Text: "dup"})
	if err == nil || !strings.Contains(err.Error(), "duplicate key value") {
		t.Fatalf("expected backend message surfaced, got %v", err)
	}
}
