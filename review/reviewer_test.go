package review

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/reviewpilot/reviewpilot/config"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("request failed with status 429"), true},
		{"server error", errors.New("received 503 from upstream"), true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"bad request", errors.New("request failed with status 400"), false},
		{"auth", errors.New("invalid api key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryWithBackoffNonRetryableFailsFast(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	calls := 0

	_, err := retryWithBackoff(context.Background(), logger, "op", func() (string, error) {
		calls++
		return "", errors.New("invalid api key")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on non-retryable error)", calls)
	}
}

func TestRetryWithBackoffEventualSuccess(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	calls := 0

	got, err := retryWithBackoff(context.Background(), logger, "op", func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("status 503")
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("retryWithBackoff() error = %v", err)
	}
	if got != "ok" || calls != 2 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

const filterTestDiff = `diff --git a/src/main.go b/src/main.go
--- a/src/main.go
+++ b/src/main.go
@@ -1,2 +1,2 @@
-old
+new
diff --git a/vendor/lib.go b/vendor/lib.go
--- a/vendor/lib.go
+++ b/vendor/lib.go
@@ -1,1 +1,1 @@
-x
+y
diff --git a/api/types.gen.go b/api/types.gen.go
--- a/api/types.gen.go
+++ b/api/types.gen.go
@@ -1,1 +1,1 @@
-a
+b`

func TestFilterDiff(t *testing.T) {
	cfg := &config.Config{Exclude: []string{"vendor/**", "*.gen.go"}}

	got := filterDiff(filterTestDiff, cfg)

	if !strings.Contains(got, "src/main.go") {
		t.Error("non-excluded file was dropped")
	}
	if strings.Contains(got, "vendor/lib.go") {
		t.Error("vendor file survived the filter")
	}
	if strings.Contains(got, "types.gen.go") {
		t.Error("generated file survived the filter")
	}
}

func TestFilterDiffNoPatterns(t *testing.T) {
	cfg := &config.Config{}
	if got := filterDiff(filterTestDiff, cfg); got != filterTestDiff {
		t.Error("filter without patterns should be a no-op")
	}
}

func TestFilterDiffAllExcluded(t *testing.T) {
	cfg := &config.Config{Exclude: []string{"src/**", "vendor/**", "api/**"}}

	if got := filterDiff(filterTestDiff, cfg); got != "" {
		t.Errorf("filterDiff() = %q, want empty", got)
	}
}

func TestParseThenFormatRoundTrip(t *testing.T) {
	// A realistic reply flows from parsing to a postable report.
	reply := "```json\n" + `{
		"files": [
			{"name": "db.go", "issues": [
				{"type": "security", "line": 14, "description": "SQL built by string concatenation", "suggestion": "use parameterized queries"}
			]}
		],
		"summary": "One security issue."
	}` + "\n```"

	parsed, err := ParseResponse(reply)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}

	out := FormatMarkdown(parsed, nil)
	if !strings.Contains(out, "**[security]** line 14: SQL built by string concatenation") {
		t.Errorf("report missing issue:\n%s", out)
	}
}

func TestResultJSONShape(t *testing.T) {
	// Results are persisted as JSON; field names are part of the API surface.
	res := &Result{Summary: "s", Model: "claude-3-5-sonnet-latest"}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	for _, want := range []string{`"summary"`, `"model"`, `"files"`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("serialized result missing %s: %s", want, b)
		}
	}
}
