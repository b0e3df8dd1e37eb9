package batch

import (
	"fmt"
	"strings"

	"github.com/reviewpilot/reviewpilot/diff"
	"github.com/reviewpilot/reviewpilot/tokens"
)

// BudgetExceededError signals that the assembled prompt content, re-measured
// with the estimator, exceeds the hard budget. It is not expected in normal
// operation: the packer charges costs from the same renderings the assembler
// emits, so tripping this means the estimator and packer disagree. The
// caller fails the invocation and retries with a stricter safety margin
// rather than truncating silently.
type BudgetExceededError struct {
	Measured int
	Budget   int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("assembled prompt content measures %d tokens, exceeding the budget of %d", e.Measured, e.Budget)
}

// Segment is one rendered block of the prompt, tagged with the record it
// came from (lookup only; records are owned by the PullRequestDiff) and the
// inclusion mode used.
type Segment struct {
	Record *diff.Record
	Mode   InclusionMode
	Text   string
	Tokens int
}

// Assemble concatenates the final prompt: system prompt, user prefix, the
// Full and Compressed segments in plan order, the consolidated deletions
// list, then the "other modified files" block for SummaryOnly entries.
// Excluded files appear only in the overflow manifest, never in the prompt.
//
// The content after the scaffolding is re-measured against the hard budget;
// on overflow Assemble returns a BudgetExceededError and no prompt.
func Assemble(systemPrompt, userPrefix string, plan *BudgetPlan, segments []Segment, manifest *OverflowManifest, hardBudget int, est tokens.Estimator) (string, error) {
	var content strings.Builder

	for _, seg := range segments {
		content.WriteString(seg.Text)
		content.WriteString("\n")
	}

	if deletions := deletionLines(plan); len(deletions) > 0 {
		content.WriteString("Deleted files (no review needed, listed for completeness):\n")
		for _, line := range deletions {
			content.WriteString(line)
			content.WriteString("\n")
		}
		content.WriteString("\n")
	}

	if summaries := manifest.SummaryOnly(); len(summaries) > 0 {
		content.WriteString("Other modified files (content omitted for space):\n")
		for _, d := range summaries {
			if d.Kind == diff.KindDeleted {
				continue // already on the deletions list
			}
			content.WriteString(d.Line())
			content.WriteString("\n")
		}
		content.WriteString("\n")
	}

	contentText := content.String()
	if measured := est.Estimate(contentText); measured > hardBudget {
		return "", &BudgetExceededError{Measured: measured, Budget: hardBudget}
	}

	var prompt strings.Builder
	prompt.WriteString(systemPrompt)
	prompt.WriteString("\n\n")
	prompt.WriteString(userPrefix)
	if contentText != "" {
		prompt.WriteString("\n\n")
		prompt.WriteString(contentText)
	}
	return prompt.String(), nil
}

// deletionLines builds the consolidated deletions list: one line per deleted
// file that was summarized rather than rendered. A deletion of any size is
// representable this way since it needs acknowledgment, not review.
func deletionLines(plan *BudgetPlan) []string {
	var lines []string
	for _, a := range plan.Assignments {
		if a.Record.Kind == diff.KindDeleted && a.Mode == ModeSummaryOnly {
			lines = append(lines, Summarize(a.Record, a.Mode).Line())
		}
	}
	return lines
}
