// Package storage provides SQLite persistence for research tasks.
//
// Information Hiding:
// - SQLite connection management hidden behind TaskStore
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Task statuses. A task moves pending -> running -> completed or failed.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrTaskNotFound is returned when no task exists for a research ID.
var ErrTaskNotFound = errors.New("storage: research task not found")

// Task is one research request and its lifecycle.
type Task struct {
	ResearchID   string          `json:"research_id"`
	Query        string          `json:"query"`
	ResearchType string          `json:"research_type"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TaskStore persists research tasks in a SQLite database.
type TaskStore struct {
	db *sql.DB
}

// OpenTaskStore opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenTaskStore(path string) (*TaskStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &TaskStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewTaskStoreInMemory creates an in-memory store (useful for testing).
func NewTaskStoreInMemory() (*TaskStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &TaskStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *TaskStore) Close() error {
	return s.db.Close()
}

func (s *TaskStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS research_tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			research_id TEXT NOT NULL UNIQUE,
			query TEXT NOT NULL,
			research_type TEXT NOT NULL,
			status TEXT NOT NULL,
			result TEXT,
			error TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_research_id
		ON research_tasks(research_id);

		CREATE INDEX IF NOT EXISTS idx_tasks_status
		ON research_tasks(status, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Create records a new task in pending status.
func (s *TaskStore) Create(ctx context.Context, researchID, query, researchType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO research_tasks (research_id, query, research_type, status) VALUES (?, ?, ?, ?)",
		researchID, query, researchType, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Get returns the task for a research ID.
func (s *TaskStore) Get(ctx context.Context, researchID string) (Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT research_id, query, research_type, status, result, error, created_at, updated_at
		 FROM research_tasks WHERE research_id = ?`,
		researchID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrTaskNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List returns all tasks, newest first.
func (s *TaskStore) List(ctx context.Context) ([]Task, error) {
	return s.list(ctx,
		`SELECT research_id, query, research_type, status, result, error, created_at, updated_at
		 FROM research_tasks ORDER BY created_at DESC, id DESC`)
}

// ListByStatus returns tasks with the given status, newest first.
func (s *TaskStore) ListByStatus(ctx context.Context, status string) ([]Task, error) {
	return s.list(ctx,
		`SELECT research_id, query, research_type, status, result, error, created_at, updated_at
		 FROM research_tasks WHERE status = ? ORDER BY created_at DESC, id DESC`,
		status)
}

// UpdateStatus moves a task to a new status.
func (s *TaskStore) UpdateStatus(ctx context.Context, researchID, status string) error {
	return s.update(ctx,
		"UPDATE research_tasks SET status = ?, updated_at = datetime('now') WHERE research_id = ?",
		status, researchID)
}

// CompleteWithResult stores the result payload and marks the task completed.
func (s *TaskStore) CompleteWithResult(ctx context.Context, researchID string, result json.RawMessage) error {
	return s.update(ctx,
		"UPDATE research_tasks SET status = ?, result = ?, updated_at = datetime('now') WHERE research_id = ?",
		StatusCompleted, string(result), researchID)
}

// FailWithError records the failure reason and marks the task failed.
func (s *TaskStore) FailWithError(ctx context.Context, researchID, errMsg string) error {
	return s.update(ctx,
		"UPDATE research_tasks SET status = ?, error = ?, updated_at = datetime('now') WHERE research_id = ?",
		StatusFailed, errMsg, researchID)
}

// Delete removes a task.
func (s *TaskStore) Delete(ctx context.Context, researchID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM research_tasks WHERE research_id = ?",
		researchID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (s *TaskStore) update(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *TaskStore) list(ctx context.Context, query string, args ...interface{}) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{} // Start with empty slice, not nil
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (Task, error) {
	var task Task
	var result, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&task.ResearchID, &task.Query, &task.ResearchType, &task.Status,
		&result, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return Task{}, err
	}

	if result.Valid {
		task.Result = json.RawMessage(result.String)
	}
	if errMsg.Valid {
		task.Error = errMsg.String
	}
	task.CreatedAt = parseTimestamp(createdAt)
	task.UpdatedAt = parseTimestamp(updatedAt)
	return task, nil
}

// parseTimestamp handles SQLite's datetime('now') format.
func parseTimestamp(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
