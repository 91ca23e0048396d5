// Package history records finished review runs in SQLite so they can be
// listed, inspected, and served over the local API after the fact.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/skillctl/skillctl/pkg/db"
	"github.com/skillctl/skillctl/pkg/taskstate"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	skill TEXT NOT NULL,
	goal TEXT NOT NULL,
	coder TEXT NOT NULL,
	reviewer TEXT NOT NULL,
	status TEXT NOT NULL,
	rounds INTEGER NOT NULL,
	report_path TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// Run is one row of run history.
type Run struct {
	ID         string    `db:"id" json:"id"`
	Skill      string    `db:"skill" json:"skill"`
	Goal       string    `db:"goal" json:"goal"`
	Coder      string    `db:"coder" json:"coder"`
	Reviewer   string    `db:"reviewer" json:"reviewer"`
	Status     string    `db:"status" json:"status"`
	Rounds     int       `db:"rounds" json:"rounds"`
	ReportPath string    `db:"report_path" json:"reportPath"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Store persists run history.
type Store struct {
	db *sqlx.DB
}

// NewStore opens the run history store at the default database path.
func NewStore(ctx context.Context) (*Store, error) {
	path, err := db.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return NewStoreWithPath(ctx, path)
}

// NewStoreWithPath opens the run history store at the given path.
func NewStoreWithPath(ctx context.Context, path string) (*Store, error) {
	conn, err := db.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to create runs schema")
	}

	return &Store{db: conn}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTask inserts a row for a finished review task.
func (s *Store) RecordTask(ctx context.Context, task *taskstate.Task, reportPath string) error {
	run := &Run{
		ID:         task.ID,
		Skill:      task.Skill,
		Goal:       task.Goal,
		Coder:      task.Coder,
		Reviewer:   task.Reviewer,
		Status:     string(task.Status),
		Rounds:     len(task.Rounds),
		ReportPath: reportPath,
		CreatedAt:  task.CreatedAt,
	}
	return s.Insert(ctx, run)
}

// Insert adds a run row.
func (s *Store) Insert(ctx context.Context, run *Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, skill, goal, coder, reviewer, status, rounds, report_path, created_at)
		VALUES (:id, :skill, :goal, :coder, :reviewer, :status, :rounds, :report_path, :created_at)`,
		run)
	return errors.Wrap(err, "failed to insert run")
}

// List returns runs newest first, bounded by limit (0 means no limit).
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT * FROM runs ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	return runs, nil
}

// Get returns a single run by ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, `SELECT * FROM runs WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, errors.Errorf("run '%s' not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get run")
	}
	return &run, nil
}

// Prune removes runs older than the given age and returns the count removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune runs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count pruned runs")
	}
	return n, nil
}
