package output

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"short", "a -> b;", 2},
		{"edge line", `  "main" -> "process";`, 6},
		{"multibyte runes", "ééééééééé", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestFormatTokenCount(t *testing.T) {
	tests := []struct {
		tokens int
		want   string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0k"},
		{12345, "12.3k"},
	}
	for _, tt := range tests {
		if got := FormatTokenCount(tt.tokens); got != tt.want {
			t.Errorf("FormatTokenCount(%d) = %q, want %q", tt.tokens, got, tt.want)
		}
	}
}

func TestBudget(t *testing.T) {
	text := strings.Repeat("x", 400)

	b := Budget(text, 1000)
	if b.Tokens != 100 || b.Remaining != 900 {
		t.Errorf("Budget() = %+v", b)
	}
	if b.UsagePercent != 10 {
		t.Errorf("UsagePercent = %v, want 10", b.UsagePercent)
	}

	if got := Budget(text, 0).Budget; got != DefaultBudget {
		t.Errorf("default budget = %d, want %d", got, DefaultBudget)
	}

	if got := Budget(text, 50).Remaining; got != 0 {
		t.Errorf("Remaining over budget = %d, want 0", got)
	}
}
