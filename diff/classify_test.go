package diff

import (
	"strings"
	"testing"

	"github.com/reviewpilot/reviewpilot/tokens"
)

const sampleDiff = `diff --git a/main.go b/main.go
index 1234567..abcdefg 100644
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
 package main
+import "fmt"

 func main() {
diff --git a/util.py b/util.py
new file mode 100644
--- /dev/null
+++ b/util.py
@@ -0,0 +1,2 @@
+def helper():
+    pass
diff --git a/legacy.rb b/legacy.rb
deleted file mode 100644
--- a/legacy.rb
+++ /dev/null
@@ -1,2 +0,0 @@
-def old
-end`

func TestClassify(t *testing.T) {
	d := Classify(sampleDiff)

	if d.TotalFiles() != 3 {
		t.Fatalf("TotalFiles() = %d, want 3", d.TotalFiles())
	}
	if len(d.Malformed) != 0 {
		t.Fatalf("Malformed = %v, want none", d.Malformed)
	}

	tests := []struct {
		path string
		lang string
		kind Kind
	}{
		{"main.go", "go", KindModified},
		{"util.py", "python", KindAdded},
		{"legacy.rb", "ruby", KindDeleted},
	}
	for i, tt := range tests {
		rec := d.Records[i]
		if rec.Path != tt.path {
			t.Errorf("record %d: Path = %q, want %q", i, rec.Path, tt.path)
		}
		if rec.Language != tt.lang {
			t.Errorf("record %d: Language = %q, want %q", i, rec.Language, tt.lang)
		}
		if rec.Kind != tt.kind {
			t.Errorf("record %d: Kind = %q, want %q", i, rec.Kind, tt.kind)
		}
	}
}

func TestClassifyHunks(t *testing.T) {
	d := Classify(sampleDiff)
	rec := d.Records[0]

	if len(rec.Hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(rec.Hunks))
	}
	h := rec.Hunks[0]
	if h.OldStart != 1 || h.NewStart != 1 {
		t.Errorf("hunk starts = -%d/+%d, want -1/+1", h.OldStart, h.NewStart)
	}
	if got := h.Added(); len(got) != 1 || got[0] != `import "fmt"` {
		t.Errorf("Added() = %v", got)
	}
	if rec.AddedLines() != 1 || rec.RemovedLines() != 0 {
		t.Errorf("counts = +%d/-%d, want +1/-0", rec.AddedLines(), rec.RemovedLines())
	}
}

func TestClassifyEmpty(t *testing.T) {
	for _, raw := range []string{"", "   \n  \n"} {
		d := Classify(raw)
		if d.TotalFiles() != 0 {
			t.Errorf("Classify(%q).TotalFiles() = %d, want 0", raw, d.TotalFiles())
		}
	}
}

func TestClassifyMissingHunkHeader(t *testing.T) {
	raw := `diff --git a/broken.go b/broken.go
--- a/broken.go
+++ b/broken.go
+added without a hunk header`

	d := Classify(raw)

	if d.TotalFiles() != 1 {
		t.Fatalf("TotalFiles() = %d, want 1 (malformed block must be retained)", d.TotalFiles())
	}
	rec := d.Records[0]
	if rec.Kind != KindUnknown {
		t.Errorf("Kind = %q, want %q", rec.Kind, KindUnknown)
	}
	if !strings.Contains(rec.Raw, "+added without a hunk header") {
		t.Error("raw content not preserved on malformed record")
	}
	if len(d.Malformed) != 1 {
		t.Fatalf("Malformed count = %d, want 1", len(d.Malformed))
	}
	if d.Malformed[0].Path != "broken.go" {
		t.Errorf("Malformed path = %q, want broken.go", d.Malformed[0].Path)
	}
}

func TestClassifyMismatchedLineCounts(t *testing.T) {
	raw := `diff --git a/short.go b/short.go
--- a/short.go
+++ b/short.go
@@ -1,5 +1,5 @@
 only one line`

	d := Classify(raw)
	if len(d.Malformed) != 1 {
		t.Fatalf("Malformed count = %d, want 1", len(d.Malformed))
	}
	if d.Records[0].Kind != KindUnknown {
		t.Errorf("Kind = %q, want %q", d.Records[0].Kind, KindUnknown)
	}
}

func TestClassifyMalformedDoesNotPoisonOthers(t *testing.T) {
	raw := `diff --git a/bad.go b/bad.go
--- a/bad.go
+++ b/bad.go
+no header
diff --git a/good.go b/good.go
--- a/good.go
+++ b/good.go
@@ -1 +1 @@
-old
+new`

	d := Classify(raw)
	if d.TotalFiles() != 2 {
		t.Fatalf("TotalFiles() = %d, want 2", d.TotalFiles())
	}
	if d.Records[0].Kind != KindUnknown {
		t.Errorf("bad.go Kind = %q, want unknown", d.Records[0].Kind)
	}
	if d.Records[1].Kind != KindModified {
		t.Errorf("good.go Kind = %q, want modified", d.Records[1].Kind)
	}
}

func TestRecordTokensMemoized(t *testing.T) {
	d := Classify(sampleDiff)
	rec := d.Records[0]

	est := tokens.Heuristic{}
	first := rec.Tokens(est)
	if first <= 0 {
		t.Fatalf("Tokens() = %d, want > 0", first)
	}
	if again := rec.Tokens(est); again != first {
		t.Errorf("memoized Tokens() changed: %d then %d", first, again)
	}

	if total := d.TotalTokens(est); total < first {
		t.Errorf("TotalTokens() = %d, less than single record %d", total, first)
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"cmd/server/main.go", "go"},
		{"app/models.py", "python"},
		{"web/index.tsx", "typescript"},
		{"README.md", "markdown"},
		{"Makefile", "unknown"},
		{"data.bin", "unknown"},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.path); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
