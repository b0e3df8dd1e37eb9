package storage

import (
	"encoding/json"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of an analysis task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusSuccess    TaskStatus = "SUCCESS"
	StatusFailed     TaskStatus = "FAILED"
)

// TokenUsage represents Claude API token usage accumulated over a task.
type TokenUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
}

// Add accumulates another call's usage into u.
func (u *TokenUsage) Add(other *TokenUsage) {
	if other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
}

// AnalysisTask represents one PR analysis request and its outcome. Result
// holds the review payload as raw JSON so the storage layer stays agnostic
// of the review schema.
type AnalysisTask struct {
	ID        uuid.UUID       `json:"id"`
	Owner     string          `json:"owner"`
	Repo      string          `json:"repo"`
	PRNumber  int             `json:"pr_number"`
	Status    TaskStatus      `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Usage     *TokenUsage     `json:"usage,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}
