// Package review provides pull request analysis using Claude.
package review

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an expert code reviewer. Your job is to analyze pull request changes and report concrete, actionable issues.

Classify every issue as one of:
- "style": code style and readability problems worth fixing
- "bug": logic errors, incorrect behavior, unhandled edge cases
- "performance": inefficient algorithms, unnecessary allocations, N+1 patterns
- "security": vulnerabilities, injection risks, unsafe handling of untrusted input
- "best-practice": deviations from established idioms of the language or framework

Do NOT report:
- Formatting issues (assume automated formatters handle this)
- Trivial preferences that don't affect functionality
- Issues in lines shown only as context

Some files appear in full, some compressed with removed lines collapsed to markers, and some as single summary lines. Only report issues you can actually see evidence for. Be concise and specific; when you have a concrete fix, include it in the suggestion field.`

const bugSearchSystemPrompt = `You are an expert code reviewer performing a focused second pass. You will be shown the diff of a single file that did not fit into the main review.

Report ONLY issues of type "bug" or "security": logic errors, incorrect behavior, unhandled edge cases, and vulnerabilities. Ignore style, performance and idiom concerns entirely. If the file looks correct, return an empty issues array.`

const responseFormat = `Respond in this exact JSON format:
{
  "files": [
    {
      "name": "path/to/file.go",
      "issues": [
        {
          "type": "bug",
          "line": 42,
          "description": "What is wrong and why it matters.",
          "suggestion": "How to fix it."
        }
      ]
    }
  ],
  "summary": "Brief overall assessment (1-2 sentences)"
}

Rules for the response:
1. "type" must be one of: "style", "bug", "performance", "security", "best-practice"
2. "name" must exactly match a file path from the changes
3. "line" is the new-file line number the issue applies to, or 0 for file-level issues
4. If there are no issues, return an empty files array
5. Return ONLY valid JSON, no markdown code blocks or other text`

// GetSystemPrompt returns the review system prompt, optionally extended with
// repository-specific instructions.
func GetSystemPrompt(instructions string) string {
	result := systemPrompt + "\n\n" + responseFormat
	if instructions != "" {
		result += "\n\n## Repository-Specific Instructions\n\n" + instructions
	}
	return result
}

// GetBugSearchSystemPrompt returns the system prompt for the secondary
// per-file bug-search pass.
func GetBugSearchSystemPrompt() string {
	return bugSearchSystemPrompt + "\n\n" + responseFormat
}

// BuildUserPrefix constructs the request framing that precedes the batched
// file content in the prompt.
func BuildUserPrefix(title, description string) string {
	if description == "" {
		description = "(No description provided)"
	}
	return fmt.Sprintf("Review the following pull request.\n\n**Pull Request Title:** %s\n\n**Pull Request Description:**\n%s", title, description)
}

// BuildFilePrompt constructs the user prompt for a single-file bug-search call.
func BuildFilePrompt(path, patch string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search the following file change for bugs and security issues.\n\n### %s\n", path)
	b.WriteString("```diff\n")
	b.WriteString(patch)
	if !strings.HasSuffix(patch, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```")
	return b.String()
}
