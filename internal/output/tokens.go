package output

import (
	"fmt"
	"unicode/utf8"
)

// TokenBudget describes how much of a context window a combined stream
// would occupy.
type TokenBudget struct {
	Tokens       int     `json:"tokens" toon:"tokens" yaml:"tokens"`
	Budget       int     `json:"budget" toon:"budget" yaml:"budget"`
	UsagePercent float64 `json:"usage_percent" toon:"usage_percent" yaml:"usage_percent"`
	Remaining    int     `json:"remaining" toon:"remaining" yaml:"remaining"`
}

// DefaultBudget is the context window assumed when none is given.
const DefaultBudget = 128000

// CharsPerToken is the approximate character-to-token ratio for DOT text.
const CharsPerToken = 4.0

// EstimateTokens returns an approximate token count for text.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(utf8.RuneCountInString(text))/CharsPerToken + 0.5)
}

// FormatTokenCount formats a token count for display.
// Counts >= 1000 are formatted as "X.Xk".
func FormatTokenCount(tokens int) string {
	if tokens < 1000 {
		return fmt.Sprintf("%d", tokens)
	}
	return fmt.Sprintf("%.1fk", float64(tokens)/1000)
}

// Budget estimates the share of budget taken by text.
func Budget(text string, budget int) TokenBudget {
	if budget <= 0 {
		budget = DefaultBudget
	}
	tokens := EstimateTokens(text)
	return TokenBudget{
		Tokens:       tokens,
		Budget:       budget,
		UsagePercent: float64(tokens) / float64(budget) * 100,
		Remaining:    max(budget-tokens, 0),
	}
}
