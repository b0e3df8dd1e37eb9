package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory Storage implementation. It backs the one-shot CLI
// and tests; nothing survives a restart.
type Memory struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*AnalysisTask
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tasks: make(map[uuid.UUID]*AnalysisTask)}
}

func (m *Memory) CreateTask(_ context.Context, task *AnalysisTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[task.ID]; ok {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	clone := *task
	clone.CreatedAt = now
	clone.UpdatedAt = now
	m.tasks[task.ID] = &clone
	return nil
}

func (m *Memory) UpdateTaskStatus(_ context.Context, id uuid.UUID, status TaskStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	task.Status = status
	task.Error = errMsg
	task.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return nil
}

func (m *Memory) StoreResult(_ context.Context, id uuid.UUID, result json.RawMessage, usage *TokenUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	task.Status = StatusSuccess
	task.Result = result
	task.Usage = usage
	task.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return nil
}

func (m *Memory) GetTask(_ context.Context, id uuid.UUID) (*AnalysisTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	clone := *task
	return &clone, nil
}

func (m *Memory) ListTasksForPR(_ context.Context, owner, repo string, prNumber int) ([]*AnalysisTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tasks []*AnalysisTask
	for _, task := range m.tasks {
		if task.Owner == owner && task.Repo == repo && task.PRNumber == prNumber {
			clone := *task
			tasks = append(tasks, &clone)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt < tasks[j].CreatedAt })
	return tasks, nil
}

// Verify Memory implements Storage at compile time.
var _ Storage = (*Memory)(nil)
