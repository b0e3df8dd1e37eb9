// Package diff parses unified multi-file diffs into per-file records.
package diff

import (
	"fmt"
	"sync"

	"github.com/reviewpilot/reviewpilot/tokens"
)

// Kind describes how a file changed in the pull request.
type Kind string

const (
	KindAdded    Kind = "added"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
	KindRenamed  Kind = "renamed"
	// KindUnknown marks a file block that could not be parsed. Its raw
	// content is preserved verbatim so the review never silently drops it.
	KindUnknown Kind = "unknown"
)

// LineOp is the single-character operation prefix of a diff line.
type LineOp byte

const (
	OpContext LineOp = ' '
	OpAdd     LineOp = '+'
	OpRemove  LineOp = '-'
)

// Line is one line inside a hunk, with its operation and text (prefix
// stripped).
type Line struct {
	Op   LineOp
	Text string
}

// Hunk is a contiguous block of changed lines.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	// Lines preserves the original interleaving of context, added and
	// removed lines, which the compressor needs to pick surrounding context.
	Lines []Line
}

// Added returns the added line texts in order.
func (h *Hunk) Added() []string {
	var out []string
	for _, l := range h.Lines {
		if l.Op == OpAdd {
			out = append(out, l.Text)
		}
	}
	return out
}

// Removed returns the removed line texts in order.
func (h *Hunk) Removed() []string {
	var out []string
	for _, l := range h.Lines {
		if l.Op == OpRemove {
			out = append(out, l.Text)
		}
	}
	return out
}

// Record is one file's classified diff. Immutable once classified; the token
// count is memoized on first use.
type Record struct {
	Path      string
	Language  string
	Kind      Kind
	Hunks     []Hunk
	Raw       string
	SizeBytes int

	tokensOnce sync.Once
	tokens     int
}

// Tokens returns the estimated token count of the raw file block, computed
// once with the estimator of the first call. All entities live for a single
// review request, which uses a single estimator, so the memo never sees a
// second strategy.
func (r *Record) Tokens(est tokens.Estimator) int {
	r.tokensOnce.Do(func() {
		r.tokens = est.Estimate(r.Raw)
	})
	return r.tokens
}

// AddedLines returns the total number of added lines across all hunks.
func (r *Record) AddedLines() int {
	n := 0
	for i := range r.Hunks {
		for _, l := range r.Hunks[i].Lines {
			if l.Op == OpAdd {
				n++
			}
		}
	}
	return n
}

// RemovedLines returns the total number of removed lines across all hunks.
func (r *Record) RemovedLines() int {
	n := 0
	for i := range r.Hunks {
		for _, l := range r.Hunks[i].Lines {
			if l.Op == OpRemove {
				n++
			}
		}
	}
	return n
}

// PullRequestDiff is the ordered collection of per-file records for one
// review request, in the order they appeared in the source diff. Read-only
// after classification.
type PullRequestDiff struct {
	Records []*Record
	// Malformed lists the parse failures encountered. Each failure also has
	// a corresponding KindUnknown record in Records; malformed input never
	// aborts classification.
	Malformed []*MalformedDiffError
}

// TotalFiles returns the number of file records.
func (d *PullRequestDiff) TotalFiles() int {
	return len(d.Records)
}

// TotalTokens returns the summed token estimate across all records.
func (d *PullRequestDiff) TotalTokens(est tokens.Estimator) int {
	total := 0
	for _, r := range d.Records {
		total += r.Tokens(est)
	}
	return total
}

// MalformedDiffError reports a file block that could not be parsed. It is
// recoverable: the block is retained under KindUnknown with its raw content
// intact.
type MalformedDiffError struct {
	Path   string
	Reason string
}

func (e *MalformedDiffError) Error() string {
	return fmt.Sprintf("malformed diff for %s: %s", e.Path, e.Reason)
}
