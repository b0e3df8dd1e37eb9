// Package main provides the HTTP API server for PR analysis.
//
// Configuration via environment variables:
//
//	ANTHROPIC_API_KEY      - Anthropic API key for Claude (required)
//	DATABASE_URL           - PostgreSQL connection string (required)
//	GITHUB_TOKEN           - GitHub personal access token (required unless app credentials are set)
//	GITHUB_APP_ID          - GitHub App ID (alternative to GITHUB_TOKEN)
//	GITHUB_INSTALLATION_ID - GitHub App installation ID (with GITHUB_APP_ID)
//	GITHUB_PRIVATE_KEY     - GitHub App private key in PEM format (with GITHUB_APP_ID)
//	CONFIG_PATH            - Path to reviewpilot.yml (default: reviewpilot.yml)
//	PORT                   - HTTP server port (default: 8080)
//	MAX_CONCURRENT_TASKS   - Parallel analysis limit (default: 4)
//
// Usage:
//
//	go run cmd/server/main.go
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/reviewpilot/reviewpilot/config"
	"github.com/reviewpilot/reviewpilot/github"
	"github.com/reviewpilot/reviewpilot/review"
	"github.com/reviewpilot/reviewpilot/storage"
	"github.com/reviewpilot/reviewpilot/storage/postgres"
	"github.com/reviewpilot/reviewpilot/task"
)

var (
	logger    *slog.Logger
	queue     *task.Queue
	pgStorage *postgres.PostgreSQL
)

func main() {
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := initialize(); err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer pgStorage.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze-pr", handleAnalyze)
	mux.HandleFunc("GET /status/{task_id}", handleStatus)
	mux.HandleFunc("GET /results/{task_id}", handleResults)
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("/", handleRoot)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}

	// Let in-flight analyses finish so their results are persisted.
	queue.Wait()
}

func initialize() error {
	claudeAPIKey := os.Getenv("ANTHROPIC_API_KEY")
	if claudeAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	githubClient, err := newGitHubClient()
	if err != nil {
		return err
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	maxConcurrent := int64(4)
	if v := os.Getenv("MAX_CONCURRENT_TASKS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid MAX_CONCURRENT_TASKS: %s", v)
		}
		maxConcurrent = n
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	pgStorage = postgres.New(db)

	if err := pgStorage.Migrate(context.Background()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	reviewer := review.NewReviewer(githubClient, claudeAPIKey, cfg, logger)
	queue = task.NewQueue(reviewer, pgStorage, logger, maxConcurrent, task.DefaultTaskTimeout)

	logger.Info("initialized",
		"config_path", configPath,
		"model", cfg.Model,
		"token_budget", cfg.TokenBudget,
		"max_concurrent", maxConcurrent,
	)

	return nil
}

// newGitHubClient builds a client from either a token or app credentials.
func newGitHubClient() (*github.Client, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return github.NewTokenClient(token), nil
	}

	appIDStr := os.Getenv("GITHUB_APP_ID")
	installIDStr := os.Getenv("GITHUB_INSTALLATION_ID")
	privateKey := os.Getenv("GITHUB_PRIVATE_KEY")
	if appIDStr == "" || installIDStr == "" || privateKey == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN or GITHUB_APP_ID/GITHUB_INSTALLATION_ID/GITHUB_PRIVATE_KEY is required")
	}

	appID, err := strconv.ParseInt(appIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_APP_ID: %w", err)
	}
	installID, err := strconv.ParseInt(installIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_INSTALLATION_ID: %w", err)
	}

	return github.NewAppClient(appID, installID, []byte(privateKey))
}

type analyzeRequest struct {
	GitHubPRURL string `json:"github_pr_url"`
}

func handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	owner, repo, prNumber, err := github.ParsePullRequestURL(req.GitHubPRURL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	taskID, err := queue.Enqueue(r.Context(), owner, repo, prNumber)
	if err != nil {
		logger.Error("failed to enqueue task", "error", err)
		http.Error(w, "failed to enqueue task", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusAccepted, map[string]string{
		"task_id": taskID.String(),
		"status":  string(storage.StatusPending),
	})
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	taskRecord, ok := lookupTask(w, r)
	if !ok {
		return
	}

	resp := map[string]string{
		"task_id": taskRecord.ID.String(),
		"status":  string(taskRecord.Status),
	}
	if taskRecord.Error != "" {
		resp["error"] = taskRecord.Error
	}
	jsonResponse(w, http.StatusOK, resp)
}

func handleResults(w http.ResponseWriter, r *http.Request) {
	taskRecord, ok := lookupTask(w, r)
	if !ok {
		return
	}

	if taskRecord.Status != storage.StatusSuccess {
		jsonResponse(w, http.StatusConflict, map[string]string{
			"task_id": taskRecord.ID.String(),
			"status":  string(taskRecord.Status),
			"message": "result not available",
		})
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"task_id": taskRecord.ID.String(),
		"status":  string(taskRecord.Status),
		"result":  taskRecord.Result,
	})
}

// lookupTask resolves the task_id path parameter, writing the error response
// itself when the ID is invalid or unknown.
func lookupTask(w http.ResponseWriter, r *http.Request) (*storage.AnalysisTask, bool) {
	id, err := uuid.Parse(r.PathValue("task_id"))
	if err != nil {
		http.Error(w, "invalid task ID", http.StatusBadRequest)
		return nil, false
	}

	taskRecord, err := pgStorage.GetTask(r.Context(), id)
	if err != nil {
		logger.Error("failed to load task", "task_id", id, "error", err)
		http.Error(w, "failed to load task", http.StatusInternalServerError)
		return nil, false
	}
	if taskRecord == nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return nil, false
	}
	return taskRecord, true
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"name":   "reviewpilot",
		"status": "running",
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
