package batch

import (
	"sort"

	"github.com/reviewpilot/reviewpilot/diff"
	"github.com/reviewpilot/reviewpilot/tokens"
)

// kindPriority ranks change kinds for prioritization. Modifications carry
// the most forward-looking risk, deletions the least. Unknown blocks keep a
// middle rank: they hold unparsed content that may still be reviewable.
var kindPriority = map[diff.Kind]int{
	diff.KindModified: 4,
	diff.KindAdded:    3,
	diff.KindUnknown:  2,
	diff.KindDeleted:  1,
	diff.KindRenamed:  0,
}

// Prioritize orders records for inclusion, most valuable first: language
// weight, then estimated token count (larger files first), then change kind.
// The sort is stable so ties keep the original diff order and the result is
// deterministic. The input slice is not modified.
func Prioritize(records []*diff.Record, cfg EngineConfig, est tokens.Estimator) []*diff.Record {
	ordered := make([]*diff.Record, len(records))
	copy(ordered, records)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]

		wa, wb := cfg.weight(a.Language), cfg.weight(b.Language)
		if wa != wb {
			return wa > wb
		}

		ta, tb := a.Tokens(est), b.Tokens(est)
		if ta != tb {
			return ta > tb
		}

		return kindPriority[a.Kind] > kindPriority[b.Kind]
	})

	return ordered
}
