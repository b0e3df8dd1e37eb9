package review

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reviewpilot/reviewpilot/config"
)

// Issue is a single finding reported by the model.
type Issue struct {
	Type        string `json:"type"` // style, bug, performance, security, best-practice
	Line        int    `json:"line"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// FileReview groups the issues found in one file.
type FileReview struct {
	Name   string  `json:"name"`
	Issues []Issue `json:"issues"`
}

// ReviewResponse is Claude's structured review output.
type ReviewResponse struct {
	Files   []FileReview `json:"files"`
	Summary string       `json:"summary"`
}

// IssueCount returns the total number of issues across all files.
func (r *ReviewResponse) IssueCount() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Issues)
	}
	return n
}

var validIssueTypes = map[string]bool{
	"style":         true,
	"bug":           true,
	"performance":   true,
	"security":      true,
	"best-practice": true,
}

// ParseResponse parses Claude's JSON response into a structured review.
func ParseResponse(response string) (*ReviewResponse, error) {
	cleaned := cleanResponse(response)

	var result ReviewResponse
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("failed to parse review response as JSON: %w\nResponse: %s", err, cleaned)
	}

	if err := validateResponse(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

// cleanResponse removes markdown code blocks and other formatting.
func cleanResponse(response string) string {
	response = strings.TrimSpace(response)

	// Remove ```json and ``` wrappers
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}

	response = strings.TrimSuffix(response, "```")

	return strings.TrimSpace(response)
}

// validateResponse validates the parsed response, normalizing issue types.
func validateResponse(resp *ReviewResponse) error {
	for i, file := range resp.Files {
		if file.Name == "" {
			return fmt.Errorf("file %d has empty name", i)
		}
		for j, issue := range file.Issues {
			if issue.Description == "" {
				return fmt.Errorf("issue %d in %s has empty description", j, file.Name)
			}
			if issue.Line < 0 {
				return fmt.Errorf("issue %d in %s has invalid line number: %d", j, file.Name, issue.Line)
			}

			normalized := normalizeIssueType(issue.Type)
			if !validIssueTypes[normalized] {
				return fmt.Errorf("issue %d in %s has invalid type: %s", j, file.Name, issue.Type)
			}
			resp.Files[i].Issues[j].Type = normalized
		}
	}

	return nil
}

// normalizeIssueType canonicalizes model-reported issue types: lowercase,
// spaces and underscores become hyphens, empty defaults to best-practice.
func normalizeIssueType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.ReplaceAll(t, " ", "-")
	t = strings.ReplaceAll(t, "_", "-")
	if t == "" {
		return "best-practice"
	}
	return t
}

// MergeResponses combines the primary review with secondary-pass results
// according to the configured policy. With config.MergeDedupe, secondary
// findings for files the primary review already covered are dropped;
// config.MergeAppend keeps everything.
func MergeResponses(primary *ReviewResponse, secondary []*ReviewResponse, policy string) *ReviewResponse {
	merged := &ReviewResponse{
		Files:   append([]FileReview(nil), primary.Files...),
		Summary: primary.Summary,
	}

	seen := make(map[string]bool, len(primary.Files))
	for _, f := range primary.Files {
		seen[f.Name] = true
	}

	for _, resp := range secondary {
		if resp == nil {
			continue
		}
		for _, f := range resp.Files {
			if len(f.Issues) == 0 {
				continue
			}
			if policy == config.MergeDedupe && seen[f.Name] {
				continue
			}
			merged.Files = append(merged.Files, f)
			seen[f.Name] = true
		}
	}

	return merged
}

// FormatMarkdown renders a review as a markdown report suitable for posting
// as a PR comment.
func FormatMarkdown(resp *ReviewResponse, manifest []string) string {
	var b strings.Builder

	b.WriteString("## Code Review\n\n")
	if resp.Summary != "" {
		b.WriteString(resp.Summary)
		b.WriteString("\n\n")
	}

	if resp.IssueCount() == 0 {
		b.WriteString("No issues found.\n")
	}

	for _, f := range resp.Files {
		if len(f.Issues) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", f.Name)
		for _, issue := range f.Issues {
			if issue.Line > 0 {
				fmt.Fprintf(&b, "- **[%s]** line %d: %s", issue.Type, issue.Line, issue.Description)
			} else {
				fmt.Fprintf(&b, "- **[%s]** %s", issue.Type, issue.Description)
			}
			if issue.Suggestion != "" {
				fmt.Fprintf(&b, " _Suggestion: %s_", issue.Suggestion)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(manifest) > 0 {
		b.WriteString("<details>\n<summary>Files not fully reviewed due to size limits</summary>\n\n")
		for _, line := range manifest {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n</details>\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}
