package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillctl/skillctl/pkg/taskstate"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStoreWithPath(context.Background(), filepath.Join(t.TempDir(), "storage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &Run{
		ID:       "run-1",
		Skill:    "code-review",
		Goal:     "fix the parser",
		Coder:    "claude",
		Reviewer: "gemini",
		Status:   "approved",
		Rounds:   2,
	}
	require.NoError(t, store.Insert(ctx, run))
	assert.False(t, run.CreatedAt.IsZero())

	loaded, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "fix the parser", loaded.Goal)
	assert.Equal(t, 2, loaded.Rounds)
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRecordTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &taskstate.Task{
		ID:        "task-1",
		Skill:     "code-review",
		Goal:      "g",
		Coder:     "claude",
		Reviewer:  "codex",
		Status:    taskstate.StatusExhausted,
		Rounds:    []taskstate.Round{{Number: 1}, {Number: 2}, {Number: 3}},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.RecordTask(ctx, task, "/tmp/report.md"))

	loaded, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "exhausted", loaded.Status)
	assert.Equal(t, 3, loaded.Rounds)
	assert.Equal(t, "/tmp/report.md", loaded.ReportPath)
}

func TestListOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Insert(ctx, &Run{
			ID: id, Skill: "s", Goal: "g", Coder: "c", Reviewer: "r", Status: "approved",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)

	runs, err = store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &Run{
		ID: "old", Skill: "s", Goal: "g", Coder: "c", Reviewer: "r", Status: "approved",
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}))
	require.NoError(t, store.Insert(ctx, &Run{
		ID: "new", Skill: "s", Goal: "g", Coder: "c", Reviewer: "r", Status: "approved",
		CreatedAt: time.Now().UTC(),
	}))

	n, err := store.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)
}
