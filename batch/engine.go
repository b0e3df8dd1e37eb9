package batch

import (
	"github.com/reviewpilot/reviewpilot/diff"
	"github.com/reviewpilot/reviewpilot/tokens"
)

// assemblyOverheadTokens reserves room for the assembler's own structure:
// block headings, separators and the joins between segments.
const assemblyOverheadTokens = 32

// Result is the engine's output for one review request: the assembled
// prompt, the plan that produced it, and the overflow manifest disclosing
// what was left out.
type Result struct {
	Prompt      string
	Plan        *BudgetPlan
	Manifest    *OverflowManifest
	Segments    []Segment
	Diagnostics []string
}

// Run executes the full batching pipeline: prioritize the classified
// records, pack them into the budget, compress or summarize as assigned,
// and assemble the final prompt. The budget covers the entire prompt, so
// the caller's scaffolding cost and the configured safety margin are carved
// out before packing content.
//
// Run is a pure function of its arguments; it is safe to call concurrently
// for independent requests.
func Run(pr *diff.PullRequestDiff, budget int, systemPrompt, userPrefix string, cfg EngineConfig, est tokens.Estimator) (*Result, error) {
	ordered := Prioritize(pr.Records, cfg, est)

	scaffoldText := systemPrompt + "\n\n" + userPrefix
	scaffold := est.Estimate(scaffoldText) + assemblyOverheadTokens
	margin := budget * cfg.SafetyMarginPercent / 100

	contentBudget := budget - scaffold - margin
	if contentBudget < 0 {
		contentBudget = 0
	}
	// The hard check re-measures the content including the block headings
	// and joins the overhead reserve pays for, so the reserve stays inside
	// the allowance here.
	hardBudget := budget - est.Estimate(scaffoldText)
	if hardBudget < 0 {
		hardBudget = 0
	}

	plan := Pack(ordered, contentBudget, cfg, est)

	var segments []Segment
	for _, a := range plan.Assignments {
		switch a.Mode {
		case ModeFull:
			segments = append(segments, Segment{
				Record: a.Record,
				Mode:   ModeFull,
				Text:   renderFull(a.Record),
				Tokens: a.Cost,
			})
		case ModeCompressed:
			text, _ := Compress(a.Record, cfg, est)
			segments = append(segments, Segment{
				Record: a.Record,
				Mode:   ModeCompressed,
				Text:   text,
				Tokens: a.Cost,
			})
		}
	}

	manifest := BuildManifest(plan)

	prompt, err := Assemble(systemPrompt, userPrefix, plan, segments, manifest, hardBudget, est)
	if err != nil {
		return nil, err
	}

	var diags []string
	for _, m := range pr.Malformed {
		diags = append(diags, m.Error())
	}

	return &Result{
		Prompt:      prompt,
		Plan:        plan,
		Manifest:    manifest,
		Segments:    segments,
		Diagnostics: diags,
	}, nil
}
