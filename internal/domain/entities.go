package domain

import "time"

// TextDocument is a loaded file. Content is never modified after load.
type TextDocument struct {
	Path    string
	Content string
}

// BudgetDecision is the outcome of checking two token counts against a limit.
type BudgetDecision struct {
	PromptTokens int  `json:"prompt_tokens"`
	LogTokens    int  `json:"log_tokens"`
	TotalTokens  int  `json:"total_tokens"`
	Limit        int  `json:"limit"`
	Passed       bool `json:"passed"`
}

// Overage returns how many tokens the decision is over its limit, or 0.
func (d BudgetDecision) Overage() int {
	if d.TotalTokens <= d.Limit {
		return 0
	}
	return d.TotalTokens - d.Limit
}

type LogEntry struct {
	Time    time.Time
	Message string
}

// RunState is a pipeline state. Completed and the Aborted* states are terminal.
type RunState int

const (
	StateStart RunState = iota
	StatePromptLoaded
	StateLogLoaded
	StateBudgetChecked
	StateCompleted
	StateAbortedLoadFailure
	StateAbortedOverBudget
	StateAbortedAPIFailure
)

func (s RunState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StatePromptLoaded:
		return "prompt_loaded"
	case StateLogLoaded:
		return "log_loaded"
	case StateBudgetChecked:
		return "budget_checked"
	case StateCompleted:
		return "completed"
	case StateAbortedLoadFailure:
		return "aborted(load_failure)"
	case StateAbortedOverBudget:
		return "aborted(over_budget)"
	case StateAbortedAPIFailure:
		return "aborted(api_failure)"
	default:
		return "unknown"
	}
}

// RunResult is the structured outcome of one pipeline run.
type RunResult struct {
	ID       string
	State    RunState
	Decision BudgetDecision
	Response string
	Err      error
}

// EventKind classifies pipeline events.
type EventKind string

const (
	EventInfo     EventKind = "info"
	EventUsage    EventKind = "usage"
	EventWarning  EventKind = "warning"
	EventError    EventKind = "error"
	EventResponse EventKind = "response"
	EventDone     EventKind = "done"
)

// Event is one human-readable step of a run, in the order it happened.
type Event struct {
	RunID   string
	Time    time.Time
	Kind    EventKind
	Message string
}
