package batch

import (
	"runtime"

	"github.com/reviewpilot/reviewpilot/diff"
	"github.com/reviewpilot/reviewpilot/tokens"
	"golang.org/x/sync/errgroup"
)

// InclusionMode is the tier at which a file's diff is represented in the
// final prompt. Values are ordered so a higher mode means more content.
type InclusionMode int

const (
	ModeExcluded InclusionMode = iota
	ModeSummaryOnly
	ModeCompressed
	ModeFull
)

func (m InclusionMode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeCompressed:
		return "compressed"
	case ModeSummaryOnly:
		return "summary-only"
	default:
		return "excluded"
	}
}

// Assignment is one record's packing decision and the token cost charged
// against the budget for it.
type Assignment struct {
	Record *diff.Record
	Mode   InclusionMode
	Cost   int
}

// BudgetPlan holds the packing decisions in prioritized order. The sum of
// charged costs never exceeds Budget.
type BudgetPlan struct {
	Budget      int
	Assignments []Assignment
}

// TotalCost returns the sum of charged costs.
func (p *BudgetPlan) TotalCost() int {
	total := 0
	for _, a := range p.Assignments {
		total += a.Cost
	}
	return total
}

// recordCost carries the pre-gathered cost estimates for one record.
type recordCost struct {
	full       int
	compressed int
	summary    int
}

// Pack assigns an inclusion mode to each record, walking them in prioritized
// order and deducting each charged cost from the remaining budget:
//
//  1. Full if the complete rendered diff fits.
//  2. Compressed if the compressor's projected size fits.
//  3. SummaryOnly if the rendered summary line fits.
//  4. Excluded otherwise.
//
// Every charge is the measured cost of the text the assembler will emit for
// that mode; the summary charge is additionally floored at
// cfg.SummaryCostTokens. Charging from the same renderings keeps the plan
// and the assembler's re-measure in agreement however long the paths get.
//
// Deleted files never occupy a content rung: their removed content has no
// review value, so they go straight to the summary tier and the assembler
// folds them into the consolidated deletions list. Once the remainder drops
// below the summary floor, all subsequent records are excluded without
// further cost checks; they are still recorded so the overflow manifest can
// disclose them.
//
// Cost estimation runs across workers for throughput, but decisions are
// applied in a single pass over the prioritized sequence after all estimates
// are gathered, so the plan is identical to a fully sequential run.
func Pack(ordered []*diff.Record, budget int, cfg EngineConfig, est tokens.Estimator) *BudgetPlan {
	plan := &BudgetPlan{
		Budget:      budget,
		Assignments: make([]Assignment, 0, len(ordered)),
	}

	costs := gatherCosts(ordered, cfg, est)

	remaining := budget
	exhausted := remaining < cfg.SummaryCostTokens

	for i, rec := range ordered {
		if exhausted {
			plan.Assignments = append(plan.Assignments, Assignment{Record: rec, Mode: ModeExcluded})
			continue
		}

		var a Assignment
		a.Record = rec
		switch {
		case rec.Kind == diff.KindDeleted:
			if costs[i].summary <= remaining {
				a.Mode, a.Cost = ModeSummaryOnly, costs[i].summary
			}
		case costs[i].full <= remaining:
			a.Mode, a.Cost = ModeFull, costs[i].full
		case costs[i].compressed <= remaining:
			a.Mode, a.Cost = ModeCompressed, costs[i].compressed
		case costs[i].summary <= remaining:
			a.Mode, a.Cost = ModeSummaryOnly, costs[i].summary
		default:
			a.Mode = ModeExcluded
		}

		remaining -= a.Cost
		plan.Assignments = append(plan.Assignments, a)

		if remaining < cfg.SummaryCostTokens {
			exhausted = true
		}
	}

	return plan
}

// gatherCosts estimates the per-mode costs for every record. Records are
// independent, so estimation fans out across workers; results land in a
// positionally indexed slice to keep the reduction order fixed.
func gatherCosts(ordered []*diff.Record, cfg EngineConfig, est tokens.Estimator) []recordCost {
	costs := make([]recordCost, len(ordered))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, rec := range ordered {
		i, rec := i, rec
		g.Go(func() error {
			_, compressed := Compress(rec, cfg, est)
			summary := est.Estimate(Summarize(rec, ModeSummaryOnly).Line() + "\n")
			if summary < cfg.SummaryCostTokens {
				summary = cfg.SummaryCostTokens
			}
			costs[i] = recordCost{
				full:       est.Estimate(renderFull(rec)),
				compressed: compressed,
				summary:    summary,
			}
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes completion.
	_ = g.Wait()

	return costs
}
