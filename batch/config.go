// Package batch packs pull-request diff content into a token budget.
//
// Given a classified diff and a budget, the engine decides per file whether
// its diff is included verbatim, compressed, summarized to a one-line
// descriptor, or excluded, then assembles the selected segments into the
// final prompt. The whole computation is pure: explicit configuration in,
// deterministic plan out, no shared state between invocations.
package batch

// EngineConfig carries the engine tunables. It is passed by value into each
// call so concurrent review requests never share mutable state.
type EngineConfig struct {
	// LanguageWeights maps language tags to importance weights for
	// prioritization. Languages not in the map get defaultLanguageWeight.
	LanguageWeights map[string]int
	// ContextLines is the number of unchanged lines kept around additions
	// when compressing a file.
	ContextLines int
	// SafetyMarginPercent reserves a fraction of the budget to absorb token
	// estimation error. Set to zero when the exact tokenizer is active.
	SafetyMarginPercent int
	// SummaryCostTokens is the minimum charge for a SummaryOnly file. The
	// packer charges the measured cost of the rendered summary line, floored
	// here; it is also the cutoff below which the remaining budget counts as
	// exhausted.
	SummaryCostTokens int
}

const defaultLanguageWeight = 1

// DefaultEngineConfig returns the default tunables. Weights favor languages
// whose changes carry the most reviewable surface; docs and data files rank
// lowest.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LanguageWeights: map[string]int{
			"go":         10,
			"python":     10,
			"rust":       9,
			"typescript": 9,
			"javascript": 9,
			"java":       9,
			"c":          8,
			"cpp":        8,
			"csharp":     8,
			"ruby":       8,
			"swift":      8,
			"kotlin":     8,
			"php":        7,
			"scala":      7,
			"sql":        6,
			"shell":      5,
			"yaml":       4,
			"html":       4,
			"json":       3,
			"toml":       3,
			"css":        3,
			"markdown":   2,
			"text":       1,
		},
		ContextLines:        3,
		SafetyMarginPercent: 8,
		SummaryCostTokens:   16,
	}
}

// weight returns the configured weight for a language tag.
func (c EngineConfig) weight(language string) int {
	if w, ok := c.LanguageWeights[language]; ok {
		return w
	}
	return defaultLanguageWeight
}
