// Package tokens provides token counting for prompt budgeting.
package tokens

import (
	"fmt"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Estimator maps a text span to an estimated model-token count.
// Implementations must be deterministic for identical input and safe for
// concurrent use.
type Estimator interface {
	// Estimate returns a non-negative token count for text.
	Estimate(text string) int
	// Name identifies the counting strategy (for logging and diagnostics).
	Name() string
}

// charsPerToken is the average characters-per-token ratio used by the
// heuristic strategy. For source code and diffs the real ratio is typically
// between 3 and 5, so counts can be off by up to ~25% in either direction.
// Callers packing against a hard budget with this strategy should reserve a
// safety margin to absorb that error.
const charsPerToken = 4

// Heuristic estimates tokens from rune count. It is the fast fallback used
// when the exact tokenizer cannot be loaded.
type Heuristic struct{}

// Estimate returns the rune count divided by charsPerToken, rounded up.
// Rounding up keeps the estimate a safe upper bound for very short spans.
func (Heuristic) Estimate(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	return (runes + charsPerToken - 1) / charsPerToken
}

// Name implements Estimator.
func (Heuristic) Name() string { return "heuristic" }

// Tiktoken counts tokens with the cl100k_base encoding. cl100k_base is the
// GPT-4 encoding and a close approximation for Claude, which does not publish
// its tokenizer.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the cl100k_base encoding.
func NewTiktoken() (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load cl100k_base encoding: %w", err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Estimate implements Estimator.
func (t *Tiktoken) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Name implements Estimator.
func (t *Tiktoken) Name() string { return "tiktoken/cl100k_base" }

// New returns the preferred estimator: exact tiktoken counting when the
// encoding can be loaded, otherwise the heuristic fallback. The returned
// diagnostic is empty when the exact strategy is active and describes the
// fallback otherwise. Falling back is not an error; the review proceeds and
// the caller surfaces the diagnostic to the requester.
func New() (Estimator, string) {
	exact, err := NewTiktoken()
	if err != nil {
		return Heuristic{}, fmt.Sprintf("exact tokenizer unavailable (%v), using heuristic estimate (chars/%d); counts may be off by ~25%%", err, charsPerToken)
	}
	return exact, ""
}
