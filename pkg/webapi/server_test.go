package webapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillctl/skillctl/pkg/history"
	"github.com/skillctl/skillctl/pkg/taskstate"
)

func newTestServer(t *testing.T) (*Server, *history.Store, *taskstate.Store) {
	t.Helper()
	ctx := context.Background()

	runs, err := history.NewStoreWithPath(ctx, filepath.Join(t.TempDir(), "storage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { runs.Close() })

	tasks, err := taskstate.NewStoreWithDir(t.TempDir())
	require.NoError(t, err)

	srv, err := NewServer(&ServerConfig{Host: "127.0.0.1", Port: 8723}, runs, tasks)
	require.NoError(t, err)
	return srv, runs, tasks
}

func TestServerConfigValidate(t *testing.T) {
	assert.Error(t, (&ServerConfig{Host: "", Port: 8080}).Validate())
	assert.Error(t, (&ServerConfig{Host: "localhost", Port: 0}).Validate())
	assert.Error(t, (&ServerConfig{Host: "localhost", Port: 70000}).Validate())
	assert.NoError(t, (&ServerConfig{Host: "localhost", Port: 8080}).Validate())
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestListAndGetRuns(t *testing.T) {
	srv, runs, _ := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, runs.Insert(ctx, &history.Run{
		ID:       "run-1",
		Skill:    "review",
		Goal:     "fix flaky test",
		Coder:    "claude",
		Reviewer: "codex",
		Status:   "approved",
		Rounds:   2,
	}))
	require.NoError(t, runs.Insert(ctx, &history.Run{
		ID:        "run-2",
		Skill:     "review",
		Goal:      "add retries",
		Coder:     "gemini",
		Reviewer:  "claude",
		Status:    "exhausted",
		Rounds:    3,
		CreatedAt: time.Now().UTC().Add(time.Minute),
	}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Runs []history.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Runs, 2)
	assert.Equal(t, "run-2", listResp.Runs[0].ID)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs?limit=1", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Runs, 1)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs?limit=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/run-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var run history.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "fix flaky test", run.Goal)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAndGetTasks(t *testing.T) {
	srv, _, tasks := newTestServer(t)

	task := &taskstate.Task{
		ID:       "task-abc",
		Skill:    "review",
		Goal:     "tighten validation",
		Coder:    "claude",
		Reviewer: "copilot",
		Status:   taskstate.StatusRunning,
	}
	require.NoError(t, tasks.Create(task))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/tasks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Tasks []*taskstate.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Tasks, 1)
	assert.Equal(t, "task-abc", listResp.Tasks[0].ID)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/tasks/task-abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/tasks/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmptyStores(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"runs":[]`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/tasks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tasks":[]`)
}
