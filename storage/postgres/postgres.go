// Package postgres provides a PostgreSQL implementation of the storage interface.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reviewpilot/reviewpilot/storage"
)

// PostgreSQL provides task storage using PostgreSQL.
type PostgreSQL struct {
	db *sql.DB
}

// New creates a new PostgreSQL storage instance.
func New(db *sql.DB) *PostgreSQL {
	return &PostgreSQL{db: db}
}

// NewFromDSN creates a new PostgreSQL storage instance from a connection string.
func NewFromDSN(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgreSQL{db: db}, nil
}

// Close closes the database connection.
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

// Migrate creates the required database tables.
func (p *PostgreSQL) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS analysis_tasks (
			id UUID PRIMARY KEY,
			owner TEXT NOT NULL,
			repo TEXT NOT NULL,
			pr_number INTEGER NOT NULL,
			status TEXT NOT NULL,
			result JSONB,
			error TEXT,
			usage JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_analysis_tasks_pr ON analysis_tasks(owner, repo, pr_number);
	`

	_, err := p.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// CreateTask records a new pending task.
func (p *PostgreSQL) CreateTask(ctx context.Context, task *storage.AnalysisTask) error {
	query := `
		INSERT INTO analysis_tasks (id, owner, repo, pr_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`

	_, err := p.db.ExecContext(ctx, query,
		task.ID,
		task.Owner,
		task.Repo,
		task.PRNumber,
		string(task.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// UpdateTaskStatus transitions a task's status.
func (p *PostgreSQL) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status storage.TaskStatus, errMsg string) error {
	query := `
		UPDATE analysis_tasks
		SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1
	`

	res, err := p.db.ExecContext(ctx, query, id, string(status), nullString(errMsg))
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task %s not found", id)
	}

	return nil
}

// StoreResult records the review payload and marks the task successful.
func (p *PostgreSQL) StoreResult(ctx context.Context, id uuid.UUID, result json.RawMessage, usage *storage.TokenUsage) error {
	query := `
		UPDATE analysis_tasks
		SET status = $2, result = $3, usage = $4, updated_at = NOW()
		WHERE id = $1
	`

	res, err := p.db.ExecContext(ctx, query,
		id,
		string(storage.StatusSuccess),
		resultToJSON(result),
		usageToJSON(usage),
	)
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task %s not found", id)
	}

	return nil
}

// GetTask retrieves a task by ID.
func (p *PostgreSQL) GetTask(ctx context.Context, id uuid.UUID) (*storage.AnalysisTask, error) {
	query := `
		SELECT id, owner, repo, pr_number, status, result, error, usage, created_at, updated_at
		FROM analysis_tasks
		WHERE id = $1
	`

	task, err := scanTask(p.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// ListTasksForPR retrieves all tasks for a pull request, oldest first.
func (p *PostgreSQL) ListTasksForPR(ctx context.Context, owner, repo string, prNumber int) ([]*storage.AnalysisTask, error) {
	query := `
		SELECT id, owner, repo, pr_number, status, result, error, usage, created_at, updated_at
		FROM analysis_tasks
		WHERE owner = $1 AND repo = $2 AND pr_number = $3
		ORDER BY created_at ASC
	`

	rows, err := p.db.QueryContext(ctx, query, owner, repo, prNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*storage.AnalysisTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*storage.AnalysisTask, error) {
	var task storage.AnalysisTask
	var status string
	var resultJSON, errMsg, usageJSON sql.NullString
	var createdAt, updatedAt time.Time

	if err := row.Scan(
		&task.ID,
		&task.Owner,
		&task.Repo,
		&task.PRNumber,
		&status,
		&resultJSON,
		&errMsg,
		&usageJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	task.Status = storage.TaskStatus(status)
	task.Result = resultFromJSON(resultJSON.String)
	task.Error = errMsg.String
	task.Usage = usageFromJSON(usageJSON.String)
	task.CreatedAt = createdAt.Format(time.RFC3339)
	task.UpdatedAt = updatedAt.Format(time.RFC3339)

	return &task, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Verify PostgreSQL implements Storage at compile time.
var _ storage.Storage = (*PostgreSQL)(nil)
