// Package storage defines the persistence interface for analysis tasks.
package storage

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Storage defines the interface for task storage backends.
// Implementations must be safe for concurrent use by multiple goroutines.
type Storage interface {
	// CreateTask records a new task in StatusPending.
	CreateTask(ctx context.Context, task *AnalysisTask) error
	// UpdateTaskStatus transitions a task's status; errMsg is recorded on
	// failure transitions and ignored otherwise.
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status TaskStatus, errMsg string) error
	// StoreResult records a completed task's review payload and usage and
	// marks the task StatusSuccess.
	StoreResult(ctx context.Context, id uuid.UUID, result json.RawMessage, usage *TokenUsage) error
	// GetTask fetches a task by ID. Returns (nil, nil) if it doesn't exist.
	GetTask(ctx context.Context, id uuid.UUID) (*AnalysisTask, error)
	// ListTasksForPR returns all tasks recorded for a pull request, oldest first.
	ListTasksForPR(ctx context.Context, owner, repo string, prNumber int) ([]*AnalysisTask, error)
}
