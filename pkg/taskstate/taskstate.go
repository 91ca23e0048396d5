// Package taskstate persists review-loop task state as flat JSON files under
// ~/.skillctl/tasks. Files are guarded by exclusive .lock files so a watch
// loop and a manual run racing on the same task do not interleave writes.
package taskstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Status is the lifecycle state of a review task.
type Status string

const (
	// StatusPending marks a task that has been created but not started.
	StatusPending Status = "pending"
	// StatusRunning marks a task with an active review loop.
	StatusRunning Status = "running"
	// StatusApproved marks a task whose reviewer approved the change.
	StatusApproved Status = "approved"
	// StatusExhausted marks a task that hit the round bound without approval.
	StatusExhausted Status = "exhausted"
	// StatusFailed marks a task aborted by a provider failure.
	StatusFailed Status = "failed"
)

// Round is the persisted record of one coder/reviewer iteration.
type Round struct {
	Number         int           `json:"number"`
	CoderOutput    string        `json:"coderOutput"`
	ReviewerOutput string        `json:"reviewerOutput"`
	Verdict        string        `json:"verdict"`
	Patch          string        `json:"patch,omitempty"`
	RevisionDelta  string        `json:"revisionDelta,omitempty"`
	CoderElapsed   time.Duration `json:"coderElapsed"`
	ReviewElapsed  time.Duration `json:"reviewElapsed"`
}

// Task is the persisted state of a review loop.
type Task struct {
	ID        string    `json:"id"`
	Skill     string    `json:"skill"`
	Goal      string    `json:"goal"`
	Coder     string    `json:"coder"`
	Reviewer  string    `json:"reviewer"`
	Status    Status    `json:"status"`
	Rounds    []Round   `json:"rounds"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store reads and writes task files.
type Store struct {
	taskDir string
}

// NewStore creates a store rooted at ~/.skillctl/tasks.
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user home directory")
	}
	return NewStoreWithDir(filepath.Join(homeDir, ".skillctl", "tasks"))
}

// NewStoreWithDir creates a store rooted at the given directory.
func NewStoreWithDir(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create task directory")
	}
	return &Store{taskDir: dir}, nil
}

func (s *Store) taskPath(id string) string {
	return filepath.Join(s.taskDir, fmt.Sprintf("task-%s.json", id))
}

// Create initializes and persists a new task, assigning its ID and timestamps.
func (s *Store) Create(task *Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = StatusPending
	}
	return s.write(task)
}

// Update persists the task, bumping UpdatedAt.
func (s *Store) Update(task *Task) error {
	if task.ID == "" {
		return errors.New("task has no ID")
	}
	task.UpdatedAt = time.Now().UTC()
	return s.write(task)
}

func (s *Store) write(task *Task) error {
	path := s.taskPath(task.ID)

	lock, err := acquireLock(path)
	if err != nil {
		return err
	}
	defer lock.release()

	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal task")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write task file")
	}

	return nil
}

// Get loads a task by ID.
func (s *Store) Get(id string) (*Task, error) {
	data, err := os.ReadFile(s.taskPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("task '%s' not found", id)
		}
		return nil, errors.Wrap(err, "failed to read task file")
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal task file")
	}

	return &task, nil
}

// List returns all tasks, newest first.
func (s *Store) List() ([]*Task, error) {
	entries, err := os.ReadDir(s.taskDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read task directory")
	}

	var tasks []*Task
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "task-") || !strings.HasSuffix(name, ".json") {
			continue
		}

		id := strings.TrimSuffix(strings.TrimPrefix(name, "task-"), ".json")
		task, err := s.Get(id)
		if err != nil {
			continue
		}
		tasks = append(tasks, task)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	return tasks, nil
}

// Delete removes a task file.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.taskPath(id)); err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("task '%s' not found", id)
		}
		return errors.Wrap(err, "failed to delete task file")
	}
	return nil
}
