package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// hunkHeaderRegex matches unified diff hunk headers like "@@ -10,5 +15,7 @@".
var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Classify splits a raw multi-file unified diff into per-file records.
// File blocks that cannot be parsed are retained as KindUnknown records with
// their raw content preserved; the failure is recorded on the result rather
// than returned, so one bad block never aborts the whole review.
func Classify(raw string) *PullRequestDiff {
	result := &PullRequestDiff{}
	if strings.TrimSpace(raw) == "" {
		return result
	}

	for _, block := range splitFileBlocks(raw) {
		rec, err := parseFileBlock(block)
		if err != nil {
			result.Malformed = append(result.Malformed, err)
		}
		result.Records = append(result.Records, rec)
	}

	return result
}

// splitFileBlocks splits the diff at "diff --git" boundaries, keeping each
// file's complete block. Leading content before the first boundary (or a
// diff with no boundary at all) becomes its own block so it is never dropped.
func splitFileBlocks(raw string) []string {
	var blocks []string
	var current strings.Builder

	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			blocks = append(blocks, strings.TrimSuffix(current.String(), "\n"))
		}
		current.Reset()
	}

	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, "diff --git") {
			flush()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()

	return blocks
}

// parseFileBlock parses one file's diff block. On failure it returns a
// KindUnknown record holding the raw block plus the parse error.
func parseFileBlock(block string) (*Record, *MalformedDiffError) {
	lines := strings.Split(block, "\n")

	rec := &Record{
		Kind:      KindModified,
		Raw:       block,
		SizeBytes: len(block),
	}

	// Header pass: path and change kind.
	inHeader := true
	firstHunk := -1
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "diff --git"):
			// "diff --git a/path b/path"
			parts := strings.Split(line, " ")
			if len(parts) >= 4 {
				rec.Path = strings.TrimPrefix(parts[3], "b/")
			}
		case strings.HasPrefix(line, "new file mode"):
			rec.Kind = KindAdded
		case strings.HasPrefix(line, "deleted file mode"):
			rec.Kind = KindDeleted
		case strings.HasPrefix(line, "rename from"):
			rec.Kind = KindRenamed
		case strings.HasPrefix(line, "+++ b/"):
			rec.Path = strings.TrimPrefix(line, "+++ b/")
		case strings.HasPrefix(line, "--- a/") && rec.Path == "":
			// Deleted files have "+++ /dev/null"; fall back to the old path.
			rec.Path = strings.TrimPrefix(line, "--- a/")
		case strings.HasPrefix(line, "@@"):
			inHeader = false
			firstHunk = i
		}
		if !inHeader {
			break
		}
	}

	if rec.Path == "" {
		rec.Path = "unknown"
	}
	rec.Language = DetectLanguage(rec.Path)

	if firstHunk < 0 {
		// A block with +/- content but no hunk header is malformed. A block
		// that is headers only (mode change, rename without edits) is fine.
		for _, line := range lines {
			if isContentLine(line) {
				return malformed(rec, "diff content without a hunk header")
			}
		}
		return rec, nil
	}

	hunks, reason := parseHunks(lines[firstHunk:])
	if reason != "" {
		return malformed(rec, reason)
	}
	rec.Hunks = hunks
	return rec, nil
}

// malformed demotes rec to KindUnknown, drops any partially parsed hunks and
// returns the matching error. The raw content stays on the record verbatim.
func malformed(rec *Record, reason string) (*Record, *MalformedDiffError) {
	rec.Kind = KindUnknown
	rec.Hunks = nil
	return rec, &MalformedDiffError{Path: rec.Path, Reason: reason}
}

// isContentLine reports whether line is a hunk body line rather than a diff
// header line.
func isContentLine(line string) bool {
	if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
		return false
	}
	return strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-")
}

// parseHunks parses hunk headers and bodies, validating the declared line
// counts against the body. Returns a non-empty reason on failure.
func parseHunks(lines []string) ([]Hunk, string) {
	var hunks []Hunk
	i := 0
	for i < len(lines) {
		line := lines[i]
		if strings.TrimSpace(line) == "" && i == len(lines)-1 {
			break // trailing blank from the final newline
		}

		matches := hunkHeaderRegex.FindStringSubmatch(line)
		if matches == nil {
			return nil, fmt.Sprintf("expected hunk header, got %q", truncateLine(line))
		}

		h := Hunk{
			OldStart: atoi(matches[1]),
			OldCount: atoiDefault(matches[2], 1),
			NewStart: atoi(matches[3]),
			NewCount: atoiDefault(matches[4], 1),
		}
		i++

		oldSeen, newSeen := 0, 0
		for i < len(lines) && (oldSeen < h.OldCount || newSeen < h.NewCount) {
			body := lines[i]
			switch {
			case strings.HasPrefix(body, "+"):
				h.Lines = append(h.Lines, Line{Op: OpAdd, Text: body[1:]})
				newSeen++
			case strings.HasPrefix(body, "-"):
				h.Lines = append(h.Lines, Line{Op: OpRemove, Text: body[1:]})
				oldSeen++
			case strings.HasPrefix(body, "\\"):
				// "\ No newline at end of file"
			case strings.HasPrefix(body, " ") || body == "":
				text := body
				if body != "" {
					text = body[1:]
				}
				h.Lines = append(h.Lines, Line{Op: OpContext, Text: text})
				oldSeen++
				newSeen++
			default:
				return nil, fmt.Sprintf("unexpected line inside hunk: %q", truncateLine(body))
			}
			i++
		}

		if oldSeen != h.OldCount || newSeen != h.NewCount {
			return nil, fmt.Sprintf("hunk at -%d/+%d declares %d/%d lines but has %d/%d",
				h.OldStart, h.NewStart, h.OldCount, h.NewCount, oldSeen, newSeen)
		}

		hunks = append(hunks, h)
	}

	return hunks, ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	return atoi(s)
}

func truncateLine(s string) string {
	if len(s) <= 60 {
		return s
	}
	return s[:60] + "..."
}
