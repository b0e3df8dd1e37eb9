package tokens

import (
	"strings"
	"testing"
)

func TestHeuristicEstimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "single char rounds up", text: "a", want: 1},
		{name: "exactly one token", text: "abcd", want: 1},
		{name: "five chars rounds up", text: "abcde", want: 2},
		{name: "hundred chars", text: strings.Repeat("x", 100), want: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Heuristic{}.Estimate(tt.text)
			if got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestHeuristicCountsRunesNotBytes(t *testing.T) {
	// 8 multi-byte runes should count as 2 tokens, not bytes/4.
	text := "日本語のテキスト"
	got := Heuristic{}.Estimate(text)
	if got != 2 {
		t.Errorf("Estimate(%q) = %d, want 2", text, got)
	}
}

func TestHeuristicDeterministic(t *testing.T) {
	text := "func main() {\n\tfmt.Println(\"hello\")\n}\n"
	first := Heuristic{}.Estimate(text)
	for i := 0; i < 10; i++ {
		if got := (Heuristic{}).Estimate(text); got != first {
			t.Fatalf("Estimate not deterministic: got %d, want %d", got, first)
		}
	}
}

func TestTiktokenEstimate(t *testing.T) {
	est, err := NewTiktoken()
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}

	if got := est.Estimate(""); got != 0 {
		t.Errorf("Estimate(\"\") = %d, want 0", got)
	}

	got := est.Estimate("hello world")
	if got <= 0 {
		t.Errorf("Estimate(\"hello world\") = %d, want > 0", got)
	}

	// Deterministic across calls.
	if again := est.Estimate("hello world"); again != got {
		t.Errorf("Estimate not deterministic: %d then %d", got, again)
	}
}

func TestNewFallsBackCleanly(t *testing.T) {
	est, diag := New()
	if est == nil {
		t.Fatal("New() returned nil estimator")
	}
	// Whichever strategy was selected, the diagnostic must only be set for
	// the heuristic fallback.
	if _, ok := est.(Heuristic); ok && diag == "" {
		t.Error("heuristic fallback selected without a diagnostic")
	}
	if _, ok := est.(*Tiktoken); ok && diag != "" {
		t.Errorf("exact strategy selected but diagnostic set: %q", diag)
	}
}
