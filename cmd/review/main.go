// Package main provides a one-shot CLI for analyzing a pull request or
// inspecting how a diff would be packed into the token budget.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/reviewpilot/reviewpilot/batch"
	"github.com/reviewpilot/reviewpilot/config"
	"github.com/reviewpilot/reviewpilot/diff"
	"github.com/reviewpilot/reviewpilot/github"
	"github.com/reviewpilot/reviewpilot/review"
	"github.com/reviewpilot/reviewpilot/tokens"
)

var (
	flagConfig string
	flagBudget int
	flagModel  string
	flagPost   bool
)

func main() {
	root := &cobra.Command{
		Use:   "reviewpilot",
		Short: "AI code review for GitHub pull requests",
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", config.DefaultConfigPath, "path to config file")
	root.PersistentFlags().IntVarP(&flagBudget, "budget", "b", 0, "token budget override")
	root.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "Claude model override")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <pr-url>",
		Short: "Analyze a pull request and print the review",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().BoolVar(&flagPost, "post", false, "post the review as a PR comment")

	planCmd := &cobra.Command{
		Use:   "plan <diff-file>",
		Short: "Show how a local diff would be packed into the budget",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlan,
	}

	root.AddCommand(analyzeCmd, planCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagBudget > 0 {
		cfg.TokenBudget = flagBudget
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	return cfg, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return fmt.Errorf("GITHUB_TOKEN is required")
	}

	owner, repo, prNumber, err := github.ParsePullRequestURL(args[0])
	if err != nil {
		return err
	}

	client := github.NewTokenClient(token)
	reviewer := review.NewReviewer(client, apiKey, cfg, logger)

	result, err := reviewer.Analyze(context.Background(), &review.AnalyzeInput{
		Owner:    owner,
		Repo:     repo,
		PRNumber: prNumber,
	})
	if err != nil {
		return err
	}

	var manifestLines []string
	if result.Manifest != nil {
		for _, d := range result.Manifest.Entries {
			manifestLines = append(manifestLines, d.Line())
		}
	}
	report := review.FormatMarkdown(&review.ReviewResponse{
		Files:   result.Files,
		Summary: result.Summary,
	}, manifestLines)

	fmt.Println(report)

	if flagPost {
		comment, err := client.CreateIssueComment(context.Background(), owner, repo, prNumber, report)
		if err != nil {
			return fmt.Errorf("failed to post comment: %w", err)
		}
		logger.Info("posted review comment", "url", comment.HTMLURL)
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read diff: %w", err)
	}

	est, diag := tokens.New()
	if diag != "" {
		fmt.Fprintln(os.Stderr, diag)
	}

	classified := diff.Classify(string(raw))
	result, err := batch.Run(
		classified,
		cfg.TokenBudget,
		review.GetSystemPrompt(cfg.Instructions),
		review.BuildUserPrefix("(local diff)", ""),
		cfg.EngineConfig(),
		est,
	)
	if err != nil {
		return err
	}

	fmt.Printf("budget: %d tokens (estimator: %s)\n", cfg.TokenBudget, est.Name())
	fmt.Printf("content cost: %d tokens across %d files\n\n", result.Plan.TotalCost(), classified.TotalFiles())
	for _, a := range result.Plan.Assignments {
		fmt.Printf("%-12s %6d  %s\n", a.Mode, a.Cost, a.Record.Path)
	}
	if len(result.Manifest.Entries) > 0 {
		fmt.Printf("\noverflow manifest (%d files):\n", len(result.Manifest.Entries))
		for _, d := range result.Manifest.Entries {
			fmt.Println(d.Line())
		}
	}
	for _, d := range result.Diagnostics {
		fmt.Fprintln(os.Stderr, "warning:", d)
	}
	return nil
}
