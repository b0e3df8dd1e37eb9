package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/reviewpilot/reviewpilot/batch"
	"github.com/reviewpilot/reviewpilot/config"
	"github.com/reviewpilot/reviewpilot/diff"
	"github.com/reviewpilot/reviewpilot/github"
	"github.com/reviewpilot/reviewpilot/storage"
	"github.com/reviewpilot/reviewpilot/tokens"
)

const (
	// ClaudeAPITimeout is the maximum time to wait for a Claude API response.
	ClaudeAPITimeout = 3 * time.Minute

	// MaxConcurrentFiles limits how many secondary-pass files are reviewed in parallel.
	MaxConcurrentFiles = 5

	// MaxRetries is the number of times to retry transient API failures.
	MaxRetries = 3

	// RetryBaseDelay is the initial delay between retries (doubles each attempt).
	RetryBaseDelay = 1 * time.Second
)

// isRetryableError checks if an error is transient and worth retrying.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// Retry on rate limits, server errors, and network issues
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		errors.Is(err, context.DeadlineExceeded)
}

// retryWithBackoff executes fn with exponential backoff on retryable errors.
func retryWithBackoff[T any](ctx context.Context, logger *slog.Logger, operation string, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}

		if !isRetryableError(lastErr) {
			return result, lastErr
		}

		if attempt < MaxRetries {
			delay := RetryBaseDelay * time.Duration(1<<attempt) // exponential backoff
			logger.Warn("retrying after transient error",
				"operation", operation,
				"attempt", attempt+1,
				"max_attempts", MaxRetries+1,
				"delay", delay,
				"error", lastErr,
			)

			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return result, fmt.Errorf("max retries exceeded for %s: %w", operation, lastErr)
}

// Reviewer orchestrates pull request analysis: fetching the diff, packing it
// into the token budget, calling Claude, and running the secondary bug-search
// pass over files that only made it into the prompt as summary lines.
type Reviewer struct {
	githubClient *github.Client
	cfg          *config.Config
	estimator    tokens.Estimator
	apiKey       string
	logger       *slog.Logger
}

// NewReviewer creates a new Reviewer instance.
func NewReviewer(githubClient *github.Client, apiKey string, cfg *config.Config, logger *slog.Logger) *Reviewer {
	est, diag := tokens.New()
	if diag != "" {
		logger.Warn("exact token estimation unavailable", "detail", diag, "estimator", est.Name())
	}
	return &Reviewer{
		githubClient: githubClient,
		cfg:          cfg,
		estimator:    est,
		apiKey:       apiKey,
		logger:       logger,
	}
}

// AnalyzeInput identifies the pull request to analyze.
type AnalyzeInput struct {
	Owner    string
	Repo     string
	PRNumber int
}

// Result is the complete outcome of one analysis.
type Result struct {
	Summary     string                  `json:"summary"`
	Files       []FileReview            `json:"files"`
	Manifest    *batch.OverflowManifest `json:"overflow_manifest,omitempty"`
	Diagnostics []string                `json:"diagnostics,omitempty"`
	Model       string                  `json:"model"`
	Usage       *storage.TokenUsage     `json:"usage,omitempty"`
}

// claudeReply carries the raw text and token usage from one Claude API call.
type claudeReply struct {
	Text  string
	Usage *storage.TokenUsage
}

// Analyze reviews a pull request end to end.
func (r *Reviewer) Analyze(ctx context.Context, input *AnalyzeInput) (*Result, error) {
	r.logger.Info("starting analysis",
		"owner", input.Owner,
		"repo", input.Repo,
		"pr", input.PRNumber,
	)

	pr, err := r.githubClient.GetPullRequest(ctx, input.Owner, input.Repo, input.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull request: %w", err)
	}

	rawDiff, err := r.githubClient.FetchDiff(ctx, input.Owner, input.Repo, input.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch diff: %w", err)
	}
	r.logger.Info("fetched diff", "size", len(rawDiff))

	if len(r.cfg.Exclude) > 0 {
		rawDiff = filterDiff(rawDiff, r.cfg)
		r.logger.Info("filtered diff", "size", len(rawDiff), "exclude_patterns", r.cfg.Exclude)
	}

	classified := diff.Classify(rawDiff)
	r.logger.Info("classified diff",
		"files", classified.TotalFiles(),
		"malformed", len(classified.Malformed),
	)

	system := GetSystemPrompt(r.cfg.Instructions)
	prefix := BuildUserPrefix(pr.Title, pr.Body)

	batched, err := batch.Run(classified, r.cfg.TokenBudget, system, prefix, r.cfg.EngineConfig(), r.estimator)
	if err != nil {
		return nil, fmt.Errorf("failed to batch diff content: %w", err)
	}
	r.logger.Info("batched content",
		"budget", r.cfg.TokenBudget,
		"content_cost", batched.Plan.TotalCost(),
		"overflow", len(batched.Manifest.Entries),
	)

	// The engine assembles the whole prompt; the API wants the system part
	// separate from the user message.
	userMessage := strings.TrimPrefix(batched.Prompt, system+"\n\n")

	reply, err := r.callClaude(ctx, system, userMessage, "primaryReview")
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	parsed, err := ParseResponse(reply.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse review response: %w", err)
	}
	r.logger.Info("parsed review",
		"files", len(parsed.Files),
		"issues", parsed.IssueCount(),
	)

	totalUsage := &storage.TokenUsage{}
	totalUsage.Add(reply.Usage)

	if r.cfg.SecondaryPass {
		secondary, usage := r.bugSearchPass(ctx, input, batched.Manifest.SummaryOnly())
		totalUsage.Add(usage)
		parsed = MergeResponses(parsed, secondary, r.cfg.MergePolicy)
	}

	return &Result{
		Summary:     parsed.Summary,
		Files:       parsed.Files,
		Manifest:    batched.Manifest,
		Diagnostics: batched.Diagnostics,
		Model:       r.cfg.Model,
		Usage:       totalUsage,
	}, nil
}

// bugSearchPass runs the focused per-file pass over summary-only files. It is
// best effort: failures are logged and the files they concern are skipped.
func (r *Reviewer) bugSearchPass(ctx context.Context, input *AnalyzeInput, descriptors []batch.Descriptor) ([]*ReviewResponse, *storage.TokenUsage) {
	var candidates []batch.Descriptor
	for _, d := range descriptors {
		if d.Kind != diff.KindDeleted {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	files, err := r.githubClient.FetchPullRequestFiles(ctx, input.Owner, input.Repo, input.PRNumber)
	if err != nil {
		r.logger.Warn("failed to fetch file patches for bug-search pass", "error", err)
		return nil, nil
	}
	patches := make(map[string]string, len(files))
	for _, f := range files {
		if f.Patch != "" {
			patches[f.Filename] = f.Patch
		}
	}

	r.logger.Info("starting bug-search pass", "candidates", len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(MaxConcurrentFiles)
	results := make([]*ReviewResponse, len(candidates))
	usages := make([]*storage.TokenUsage, len(candidates))

	for i, d := range candidates {
		i, d := i, d
		patch, ok := patches[d.Path]
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			reply, err := r.callClaude(gctx, GetBugSearchSystemPrompt(), BuildFilePrompt(d.Path, patch), "bugSearch_"+d.Path)
			if err != nil {
				r.logger.Warn("bug-search call failed", "path", d.Path, "error", err)
				return nil
			}
			parsed, err := ParseResponse(reply.Text)
			if err != nil {
				r.logger.Warn("bug-search response unparseable", "path", d.Path, "error", err)
				return nil
			}
			results[i] = parsed
			usages[i] = reply.Usage
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.logger.Warn("bug-search pass interrupted", "error", err)
	}

	total := &storage.TokenUsage{}
	for _, u := range usages {
		total.Add(u)
	}
	return results, total
}

// callClaude sends one request to the Claude API with timeout and retry.
func (r *Reviewer) callClaude(ctx context.Context, system, user, operation string) (*claudeReply, error) {
	client := anthropic.NewClient(option.WithAPIKey(r.apiKey))

	timeoutCtx, cancel := context.WithTimeout(ctx, ClaudeAPITimeout)
	defer cancel()

	message, err := retryWithBackoff(timeoutCtx, r.logger, operation, func() (*anthropic.Message, error) {
		return client.Messages.New(timeoutCtx, anthropic.MessageNewParams{
			Model:     anthropic.F(anthropic.Model(r.cfg.Model)),
			MaxTokens: anthropic.F(int64(4096)),
			System: anthropic.F([]anthropic.TextBlockParam{
				anthropic.NewTextBlock(system),
			}),
			Messages: anthropic.F([]anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
			}),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	usage := &storage.TokenUsage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
	}
	r.logger.Info("Claude API usage",
		"operation", operation,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)

	for _, block := range message.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			return &claudeReply{Text: block.Text, Usage: usage}, nil
		}
	}

	return nil, fmt.Errorf("no text content in Claude response")
}

// filterDiff removes files matching exclude patterns from the diff.
func filterDiff(rawDiff string, cfg *config.Config) string {
	var result strings.Builder
	var currentFile string
	var includeFile bool
	var fileContent strings.Builder

	lines := strings.Split(rawDiff, "\n")
	for _, line := range lines {
		// Detect new file in diff
		if strings.HasPrefix(line, "diff --git") {
			// Write previous file if it was included
			if includeFile && fileContent.Len() > 0 {
				result.WriteString(fileContent.String())
			}
			fileContent.Reset()

			// Extract file path from "diff --git a/path b/path"
			parts := strings.Split(line, " ")
			if len(parts) >= 4 {
				currentFile = strings.TrimPrefix(parts[3], "b/")
			}
			includeFile = !cfg.ShouldExcludeFile(currentFile)
		}

		if includeFile {
			fileContent.WriteString(line)
			fileContent.WriteString("\n")
		}
	}

	// Write last file if included
	if includeFile && fileContent.Len() > 0 {
		result.WriteString(fileContent.String())
	}

	return strings.TrimSuffix(result.String(), "\n")
}
