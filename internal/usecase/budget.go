package usecase

import (
	"loganalyzer/internal/domain"
	"loganalyzer/internal/port"
)

// BudgetGate decides whether a prompt and a log fit a token limit.
// It does not report; callers log the decision.
type BudgetGate struct {
	counter port.TokenCounter
}

func NewBudgetGate(counter port.TokenCounter) *BudgetGate {
	return &BudgetGate{counter: counter}
}

// Evaluate counts both texts and passes when their sum is at most limit.
func (g *BudgetGate) Evaluate(promptText, logText string, limit int) domain.BudgetDecision {
	promptTokens := g.counter.Count(promptText)
	logTokens := g.counter.Count(logText)
	total := promptTokens + logTokens
	return domain.BudgetDecision{
		PromptTokens: promptTokens,
		LogTokens:    logTokens,
		TotalTokens:  total,
		Limit:        limit,
		Passed:       total <= limit,
	}
}
