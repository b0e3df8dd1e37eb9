package batch

import (
	"reflect"
	"strings"
	"testing"

	"github.com/reviewpilot/reviewpilot/diff"
)

func TestCompressDiffLines(t *testing.T) {
	lines := []string{
		" far context",
		" context a",
		" context b",
		" context c",
		"-removed one",
		"-removed two",
		"-removed three",
		"+added line",
		" context d",
		" context e",
		" context f",
		" far context after",
	}

	got := CompressDiffLines(lines, 3)

	// The marker occupies one slot of the 3-line context window above the
	// addition, so only two unchanged lines survive on that side.
	want := []string{
		" context b",
		" context c",
		"[-3 lines removed-]",
		"+added line",
		" context d",
		" context e",
		" context f",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CompressDiffLines() = %v, want %v", got, want)
	}
}

func TestCompressDiffLinesIdempotent(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{
			name: "mixed hunk",
			lines: []string{
				" a", " b", " c", " d",
				"-gone", "-gone", "+kept", " e", " f", " g", " h",
			},
		},
		{
			name:  "pure removal",
			lines: []string{" a", "-x", "-y", "-z", " b"},
		},
		{
			name:  "pure addition",
			lines: []string{"+one", "+two"},
		},
		{
			name:  "empty",
			lines: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := CompressDiffLines(tt.lines, 3)
			twice := CompressDiffLines(once, 3)
			if !reflect.DeepEqual(once, twice) {
				t.Errorf("not idempotent:\nonce:  %v\ntwice: %v", once, twice)
			}
		})
	}
}

func TestCompressDropsRemovedContent(t *testing.T) {
	rec := testRecord("code.go", "go", diff.KindModified, 2, 10, 2)
	cfg := DefaultEngineConfig()

	text, cost := Compress(rec, cfg, est)

	if strings.Contains(text, "-xxx") {
		t.Error("compressed output contains removed line content")
	}
	if !strings.Contains(text, "[-10 lines removed-]") {
		t.Errorf("compressed output missing removal marker:\n%s", text)
	}
	if full := est.Estimate(renderFull(rec)); cost >= full {
		t.Errorf("compressed cost %d not smaller than full cost %d", cost, full)
	}
}

func TestCompressDeletedIsMarkerOnly(t *testing.T) {
	rec := testRecord("old.py", "python", diff.KindDeleted, 0, 25, 0)
	cfg := DefaultEngineConfig()

	text, cost := Compress(rec, cfg, est)

	if strings.Contains(text, "xxx") {
		t.Errorf("deleted record body leaked into compressed form:\n%s", text)
	}
	if !strings.Contains(text, "[-25 lines removed-]") {
		t.Errorf("missing marker in %q", text)
	}
	if cost > 20 {
		t.Errorf("marker-only form cost %d, expected a handful of tokens", cost)
	}
}

func TestCompressUnknownFallsBackToRaw(t *testing.T) {
	rec := &diff.Record{
		Path:     "weird.bin",
		Language: "unknown",
		Kind:     diff.KindUnknown,
		Raw:      "some unparseable block\n+stray line",
	}
	text, _ := Compress(rec, DefaultEngineConfig(), est)
	if !strings.Contains(text, "+stray line") {
		t.Error("unknown record's raw content must be preserved verbatim")
	}
}

func TestCompressDeterministic(t *testing.T) {
	rec := testRecord("a.go", "go", diff.KindModified, 8, 4, 3)
	cfg := DefaultEngineConfig()

	firstText, firstCost := Compress(rec, cfg, est)
	for i := 0; i < 5; i++ {
		text, cost := Compress(rec, cfg, est)
		if text != firstText || cost != firstCost {
			t.Fatal("Compress is not deterministic")
		}
	}
}
