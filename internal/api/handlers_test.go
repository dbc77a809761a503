package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"autotask/internal/core"
	"autotask/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, authToken string) (*Server, *core.Manager) {
	t.Helper()
	logger := discardLogger()
	st, err := store.Open(context.Background(), t.TempDir(), 20)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	manager := core.NewManager(logger, core.ManagerOptions{
		CheckInterval: time.Minute,
		History:       st,
	})
	return NewServer("127.0.0.1:0", authToken, manager, st, logger), manager
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestListTasksEmpty(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(t, s, http.MethodGet, "/v1/tasks/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected empty array, got %q", got)
	}
}

func TestCreateAndGetTask(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(t, s, http.MethodPost, "/v1/tasks/", createTaskRequest{
		Name:        "backup",
		Command:     "echo done",
		Description: "nightly backup",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[taskResponse](t, rec)
	if created.Name != "backup" || created.Status != string(core.TaskStatusPending) {
		t.Fatalf("unexpected create response: %+v", created)
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/tasks/backup/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d", rec.Code)
	}
	got := decodeBody[taskResponse](t, rec)
	if got.Description != "nightly backup" {
		t.Fatalf("unexpected get response: %+v", got)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := doRequest(t, s, http.MethodPost, "/v1/tasks/", createTaskRequest{Command: "echo hi"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name should 400, got %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodPost, "/v1/tasks/", createTaskRequest{Name: "t"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing command should 400, got %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodPost, "/v1/tasks/", createTaskRequest{Name: "t", Command: "echo", TimeoutSecs: -1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative timeout should 400, got %d", rec.Code)
	}
}

func TestRunTaskNotFound(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(t, s, http.MethodPost, "/v1/tasks/missing/run", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
	resp := decodeBody[errorResponse](t, rec)
	if resp.Code != "not_found" {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestRunTaskSuccessAndHistory(t *testing.T) {
	s, manager := newTestServer(t, "")
	manager.CreateTask("sum", func(ctx context.Context) (any, error) {
		return 8, nil
	}, "")

	rec := doRequest(t, s, http.MethodPost, "/v1/tasks/sum/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("run status %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[taskResponse](t, rec)
	if resp.Status != string(core.TaskStatusCompleted) {
		t.Fatalf("expected completed, got %s", resp.Status)
	}
	if resp.DurationSec == nil {
		t.Fatal("completed task should report a duration")
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/tasks/sum/runs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("runs status %d", rec.Code)
	}
	runs := decodeBody[[]runResponse](t, rec)
	if len(runs) != 1 {
		t.Fatalf("expected 1 journaled run, got %d", len(runs))
	}
	if runs[0].Trigger != string(core.RunTriggerManual) || runs[0].Output != "8" {
		t.Fatalf("unexpected run record: %+v", runs[0])
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/runs/"+runs[0].ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get run status %d", rec.Code)
	}
	single := decodeBody[runResponse](t, rec)
	if single.ID != runs[0].ID {
		t.Fatalf("unexpected run: %+v", single)
	}
}

func TestRunTaskFailureReportsOutcome(t *testing.T) {
	s, manager := newTestServer(t, "")
	manager.CreateTask("bad", func(ctx context.Context) (any, error) {
		return nil, errors.New("boom")
	}, "")

	rec := doRequest(t, s, http.MethodPost, "/v1/tasks/bad/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("a failed run is still a 200, got %d", rec.Code)
	}
	resp := decodeBody[taskResponse](t, rec)
	if resp.Status != string(core.TaskStatusFailed) || resp.Error != "boom" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestListRunsUnknownTask(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(t, s, http.MethodGet, "/v1/tasks/missing/runs", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(t, s, http.MethodGet, "/v1/runs/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestScheduleTaskAndStatus(t *testing.T) {
	s, manager := newTestServer(t, "")
	manager.CreateTask("report", func(ctx context.Context) (any, error) {
		return "ok", nil
	}, "")

	at := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec := doRequest(t, s, http.MethodPost, "/v1/tasks/report/schedule", scheduleTaskRequest{
		At:          at,
		IntervalSec: 60,
		Repeat:      true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("schedule status %d: %s", rec.Code, rec.Body.String())
	}
	sched := decodeBody[scheduleResponse](t, rec)
	if sched.Task != "report" || !sched.Repeat || sched.IntervalSec != 60 {
		t.Fatalf("unexpected schedule response: %+v", sched)
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/scheduler", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("scheduler status %d", rec.Code)
	}
	status := decodeBody[schedulerResponse](t, rec)
	if status.Entries != 1 {
		t.Fatalf("expected 1 entry, got %d", status.Entries)
	}
	if len(status.Pending) != 1 || status.Pending[0] != "report" {
		t.Fatalf("unexpected pending list: %v", status.Pending)
	}
}

func TestScheduleTaskBadTimestamp(t *testing.T) {
	s, manager := newTestServer(t, "")
	manager.CreateTask("report", func(ctx context.Context) (any, error) {
		return "ok", nil
	}, "")

	rec := doRequest(t, s, http.MethodPost, "/v1/tasks/report/schedule", scheduleTaskRequest{At: "tomorrow"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestScheduleTaskBadCron(t *testing.T) {
	s, manager := newTestServer(t, "")
	manager.CreateTask("report", func(ctx context.Context) (any, error) {
		return "ok", nil
	}, "")

	rec := doRequest(t, s, http.MethodPost, "/v1/tasks/report/schedule", scheduleTaskRequest{Cron: "not a cron"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestCancelTask(t *testing.T) {
	s, manager := newTestServer(t, "")
	manager.CreateTask("t", func(ctx context.Context) (any, error) {
		return nil, nil
	}, "")

	rec := doRequest(t, s, http.MethodPost, "/v1/tasks/t/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	resp := decodeBody[map[string]any](t, rec)
	if resp["cancelled"] != true || resp["status"] != string(core.TaskStatusCancelled) {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestClearCompletedEndpoint(t *testing.T) {
	s, manager := newTestServer(t, "")
	manager.CreateTask("done", func(ctx context.Context) (any, error) {
		return nil, nil
	}, "")
	if _, err := manager.ExecuteTask(context.Background(), "done"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := manager.ScheduleTask("done", core.ScheduleOptions{At: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	rec := doRequest(t, s, http.MethodPost, "/v1/scheduler/clear-completed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	resp := decodeBody[map[string]int](t, rec)
	if resp["removed"] != 1 || resp["remaining"] != 0 {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestCronPreview(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := doRequest(t, s, http.MethodPost, "/v1/cron/preview", cronPreviewRequest{
		Expr:  "0 * * * *",
		Now:   "2026-03-01T10:30:00Z",
		Count: 3,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	resp := decodeBody[cronPreviewResponse](t, rec)
	if !resp.Valid {
		t.Fatalf("expected a valid expression: %+v", resp)
	}
	if len(resp.NextTimes) != 3 || resp.NextTimes[0] != "2026-03-01T11:00:00Z" {
		t.Fatalf("unexpected occurrences: %v", resp.NextTimes)
	}

	rec = doRequest(t, s, http.MethodPost, "/v1/cron/preview", cronPreviewRequest{Expr: "@hourly"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	resp = decodeBody[cronPreviewResponse](t, rec)
	if resp.Valid || resp.Message == "" {
		t.Fatalf("descriptor expressions are rejected: %+v", resp)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	rec := doRequest(t, s, http.MethodGet, "/v1/tasks/", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token should 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("bearer token should pass, got %d", w.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/tasks/?token=secret", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("query token should pass, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/tasks/", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token should 401, got %d", w.Code)
	}
}
