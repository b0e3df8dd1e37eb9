// Package task runs pull request analyses asynchronously and tracks their
// lifecycle in storage.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/reviewpilot/reviewpilot/review"
	"github.com/reviewpilot/reviewpilot/storage"
)

// DefaultTaskTimeout bounds a single analysis, covering every Claude call it makes.
const DefaultTaskTimeout = 10 * time.Minute

// Analyzer runs one pull request analysis. *review.Reviewer implements it.
type Analyzer interface {
	Analyze(ctx context.Context, input *review.AnalyzeInput) (*review.Result, error)
}

// Queue executes analysis tasks in background goroutines with bounded
// concurrency. Task state transitions are recorded in storage so clients can
// poll for status and results.
type Queue struct {
	analyzer Analyzer
	store    storage.Storage
	logger   *slog.Logger
	sem      *semaphore.Weighted
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewQueue creates a queue running at most maxConcurrent analyses at once.
// A non-positive timeout falls back to DefaultTaskTimeout.
func NewQueue(analyzer Analyzer, store storage.Storage, logger *slog.Logger, maxConcurrent int64, timeout time.Duration) *Queue {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &Queue{
		analyzer: analyzer,
		store:    store,
		logger:   logger,
		sem:      semaphore.NewWeighted(maxConcurrent),
		timeout:  timeout,
	}
}

// Enqueue records a pending task and starts its analysis in the background.
// The returned ID can be used to poll task status. The caller's context only
// covers the enqueue itself; the analysis runs on its own deadline so an
// abandoned HTTP request doesn't cancel the work.
func (q *Queue) Enqueue(ctx context.Context, owner, repo string, prNumber int) (uuid.UUID, error) {
	task := &storage.AnalysisTask{
		ID:       uuid.New(),
		Owner:    owner,
		Repo:     repo,
		PRNumber: prNumber,
		Status:   storage.StatusPending,
	}
	if err := q.store.CreateTask(ctx, task); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create task: %w", err)
	}

	q.wg.Add(1)
	go q.run(task.ID, owner, repo, prNumber)

	q.logger.Info("task enqueued",
		"task_id", task.ID,
		"owner", owner,
		"repo", repo,
		"pr", prNumber,
	)
	return task.ID, nil
}

func (q *Queue) run(id uuid.UUID, owner, repo string, prNumber int) {
	defer q.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.sem.Acquire(ctx, 1); err != nil {
		q.fail(ctx, id, fmt.Errorf("queue full: %w", err))
		return
	}
	defer q.sem.Release(1)

	if err := q.store.UpdateTaskStatus(ctx, id, storage.StatusInProgress, ""); err != nil {
		q.logger.Error("failed to mark task in progress", "task_id", id, "error", err)
		return
	}

	result, err := q.analyzer.Analyze(ctx, &review.AnalyzeInput{
		Owner:    owner,
		Repo:     repo,
		PRNumber: prNumber,
	})
	if err != nil {
		q.fail(ctx, id, err)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		q.fail(ctx, id, fmt.Errorf("failed to serialize result: %w", err))
		return
	}

	if err := q.store.StoreResult(ctx, id, payload, result.Usage); err != nil {
		q.logger.Error("failed to store result", "task_id", id, "error", err)
		return
	}

	q.logger.Info("task completed", "task_id", id, "files", len(result.Files))
}

func (q *Queue) fail(ctx context.Context, id uuid.UUID, cause error) {
	q.logger.Error("task failed", "task_id", id, "error", cause)

	// The run context may already be dead; recording the failure must not be.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := q.store.UpdateTaskStatus(ctx, id, storage.StatusFailed, cause.Error()); err != nil {
		q.logger.Error("failed to record task failure", "task_id", id, "error", err)
	}
}

// Wait blocks until all in-flight tasks have finished. Used on shutdown.
func (q *Queue) Wait() {
	q.wg.Wait()
}
