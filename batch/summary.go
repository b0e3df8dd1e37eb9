package batch

import (
	"fmt"

	"github.com/reviewpilot/reviewpilot/diff"
)

// Descriptor is the lightweight representation of a file that did not make
// it into the prompt in full: path and change stats, no code body.
type Descriptor struct {
	Path    string        `json:"path"`
	Kind    diff.Kind     `json:"kind"`
	Added   int           `json:"added"`
	Removed int           `json:"removed"`
	Mode    InclusionMode `json:"-"`
}

// Line renders the descriptor as a single summary line.
func (d Descriptor) Line() string {
	if d.Kind == diff.KindDeleted {
		return fmt.Sprintf("- %s (%d lines removed)", d.Path, d.Removed)
	}
	return fmt.Sprintf("- %s (%s, +%d/-%d)", d.Path, d.Kind, d.Added, d.Removed)
}

// Summarize produces a record's descriptor.
func Summarize(rec *diff.Record, mode InclusionMode) Descriptor {
	return Descriptor{
		Path:    rec.Path,
		Kind:    rec.Kind,
		Added:   rec.AddedLines(),
		Removed: rec.RemovedLines(),
		Mode:    mode,
	}
}

// OverflowManifest lists the files not fully represented in the prompt. It
// is handed to the caller for disclosure in the final report and drives the
// optional secondary bug-search pass.
type OverflowManifest struct {
	Entries []Descriptor `json:"entries"`
}

// BuildManifest collects descriptors for every SummaryOnly and Excluded
// assignment, in plan order.
func BuildManifest(plan *BudgetPlan) *OverflowManifest {
	m := &OverflowManifest{}
	for _, a := range plan.Assignments {
		if a.Mode == ModeSummaryOnly || a.Mode == ModeExcluded {
			m.Entries = append(m.Entries, Summarize(a.Record, a.Mode))
		}
	}
	return m
}

// IsEmpty reports whether every file made it into the prompt.
func (m *OverflowManifest) IsEmpty() bool {
	return len(m.Entries) == 0
}

// SummaryOnly returns the entries that paid for a prompt summary line.
// These are the candidates for the secondary bug-search pass.
func (m *OverflowManifest) SummaryOnly() []Descriptor {
	var out []Descriptor
	for _, d := range m.Entries {
		if d.Mode == ModeSummaryOnly {
			out = append(out, d)
		}
	}
	return out
}
