package batch

import (
	"fmt"
	"strings"

	"github.com/reviewpilot/reviewpilot/diff"
	"github.com/reviewpilot/reviewpilot/tokens"
)

// Compress renders the compressed form of a record and its projected token
// cost. Added lines are kept with up to cfg.ContextLines unchanged lines
// around them; each contiguous run of removed lines collapses to a marker
// carrying only the count. Deleted files render as a marker with no body at
// all. The output is deterministic and stable under re-compression.
func Compress(rec *diff.Record, cfg EngineConfig, est tokens.Estimator) (string, int) {
	text := renderCompressed(rec, cfg.ContextLines)
	return text, est.Estimate(text)
}

// renderFull renders a record's complete diff block as a prompt segment.
func renderFull(rec *diff.Record) string {
	return segmentHeader(rec) + "```diff\n" + rec.Raw + "\n```\n"
}

func segmentHeader(rec *diff.Record) string {
	return fmt.Sprintf("### %s (%s, %s)\n", rec.Path, rec.Language, rec.Kind)
}

func renderCompressed(rec *diff.Record, contextLines int) string {
	if rec.Kind == diff.KindDeleted {
		// No body regardless of context setting: a deletion needs
		// acknowledgment, not review.
		return fmt.Sprintf("### %s (%s, deleted)\n%s\n", rec.Path, rec.Language, removedMarker(rec.RemovedLines()))
	}

	if len(rec.Hunks) == 0 {
		// Unknown-kind records carry no parsed hunks; the raw block is the
		// only faithful representation.
		return renderFull(rec)
	}

	var b strings.Builder
	b.WriteString(segmentHeader(rec))
	b.WriteString("```diff\n")
	for i := range rec.Hunks {
		h := &rec.Hunks[i]
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
		for _, line := range CompressDiffLines(renderHunkLines(h), contextLines) {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	b.WriteString("```\n")
	return b.String()
}

// renderHunkLines renders a hunk body back to prefixed diff lines.
func renderHunkLines(h *diff.Hunk) []string {
	lines := make([]string, len(h.Lines))
	for i, l := range h.Lines {
		lines[i] = string(l.Op) + l.Text
	}
	return lines
}

func removedMarker(count int) string {
	return fmt.Sprintf("[-%d lines removed-]", count)
}

// CompressDiffLines compresses a hunk body given as prefixed diff lines:
// runs of removed lines collapse to a count marker, and context lines
// survive only within contextLines distance of an added line. Marker lines
// pass through untouched, and surviving context is already adjacent to
// additions, so applying the function to its own output returns it
// unchanged. The packer relies on that when it re-estimates cost after a
// first compression pass.
func CompressDiffLines(lines []string, contextLines int) []string {
	// Collapse removed runs first so distances are measured on the sequence
	// that will actually be emitted.
	collapsed := make([]string, 0, len(lines))
	removedRun := 0
	flushRun := func() {
		if removedRun > 0 {
			collapsed = append(collapsed, removedMarker(removedRun))
			removedRun = 0
		}
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "-") {
			removedRun++
			continue
		}
		flushRun()
		collapsed = append(collapsed, line)
	}
	flushRun()

	// Mark context lines within range of an addition.
	keep := make([]bool, len(collapsed))
	for i, line := range collapsed {
		if !strings.HasPrefix(line, "+") {
			continue
		}
		lo := i - contextLines
		if lo < 0 {
			lo = 0
		}
		hi := i + contextLines
		if hi > len(collapsed)-1 {
			hi = len(collapsed) - 1
		}
		for j := lo; j <= hi; j++ {
			keep[j] = true
		}
	}

	out := make([]string, 0, len(collapsed))
	for i, line := range collapsed {
		if keep[i] || !isContextDiffLine(line) {
			out = append(out, line)
		}
	}
	return out
}

// isContextDiffLine reports whether line is an unchanged context line rather
// than an addition or a collapse marker.
func isContextDiffLine(line string) bool {
	return !strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "[-")
}
