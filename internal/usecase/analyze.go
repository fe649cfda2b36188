package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"loganalyzer/internal/adapter/fs"
	"loganalyzer/internal/adapter/journal"
	"loganalyzer/internal/domain"
	"loganalyzer/internal/port"
)

// DefaultSystemPrompt is the system message sent with every analysis.
const DefaultSystemPrompt = "Expert Linux debugging engineer"

var (
	// ErrLoadFailure marks runs aborted because the prompt could not be read
	// or the log file could not be written.
	ErrLoadFailure = errors.New("load failure")

	// ErrOverBudget marks runs aborted by the budget gate.
	ErrOverBudget = errors.New("token limit exceeded")

	// ErrAPIFailure marks runs whose completion call failed.
	ErrAPIFailure = errors.New("api failure")
)

// AnalyzeRequest names the two inputs of a run.
type AnalyzeRequest struct {
	PromptPath string
	LogPath    string
}

// AnalyzeOptions are the tunables of the pipeline.
type AnalyzeOptions struct {
	TokenLimit      int
	MaxOutputTokens int
	SystemPrompt    string
	// IncludeLog appends the log content to the user message.
	IncludeLog bool
	// LockDir holds the journal lock files; empty uses the system temp dir.
	LockDir string
}

// AnalyzeUseCase runs the load, count, decide, call, log sequence.
type AnalyzeUseCase struct {
	loader      port.DocumentLoader
	gate        *BudgetGate
	completer   port.Completer
	openJournal func(path string) port.Journal
	opts        AnalyzeOptions
	sinks       []func(domain.Event)
	logger      *slog.Logger
	newID       func() string
	now         func() time.Time
}

// NewAnalyzeUseCase creates the pipeline. The journal for each run is the
// log file named in its request.
func NewAnalyzeUseCase(
	loader port.DocumentLoader,
	counter port.TokenCounter,
	completer port.Completer,
	opts AnalyzeOptions,
	logger *slog.Logger,
) *AnalyzeUseCase {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeUseCase{
		loader:    loader,
		gate:      NewBudgetGate(counter),
		completer: completer,
		openJournal: func(path string) port.Journal {
			return journal.NewAppender(path).WithLockDir(opts.LockDir)
		},
		opts:   opts,
		logger: logger,
		newID:  func() string { return uuid.NewString() },
		now:    time.Now,
	}
}

// WithJournal replaces how a run's journal is opened.
func (u *AnalyzeUseCase) WithJournal(open func(path string) port.Journal) *AnalyzeUseCase {
	u.openJournal = open
	return u
}

// Subscribe registers a sink that receives every event of every run, in order.
// Sinks are called synchronously on the pipeline goroutine.
func (u *AnalyzeUseCase) Subscribe(sink func(domain.Event)) {
	u.sinks = append(u.sinks, sink)
}

// Run executes one analysis. It always returns a result in a terminal state;
// aborts are reported through events and the journal, never silently.
func (u *AnalyzeUseCase) Run(ctx context.Context, req AnalyzeRequest) domain.RunResult {
	res := domain.RunResult{ID: u.newID(), State: domain.StateStart}
	logger := u.logger.With("run_id", res.ID)
	jr := u.openJournal(req.LogPath)

	// Start -> PromptLoaded
	prompt, err := u.loader.Load(req.PromptPath)
	if err == nil && prompt.Content == "" {
		err = errEmptyPrompt
	}
	if err != nil {
		msg := loadFailureMessage(req.PromptPath, err)
		u.emit(res.ID, domain.EventError, msg)
		u.record(res.ID, jr, msg)
		logger.Debug("prompt load failed", "path", req.PromptPath, "error", err)
		return u.finish(res, domain.StateAbortedLoadFailure, fmt.Errorf("%w: %w", ErrLoadFailure, err))
	}
	res.State = domain.StatePromptLoaded

	// PromptLoaded -> LogLoaded; a missing log is empty content.
	logDoc, err := u.loader.Load(req.LogPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotFound):
		u.emit(res.ID, domain.EventInfo, fmt.Sprintf("[INFO] Log file not found, starting with an empty log: %s", req.LogPath))
		logDoc = domain.TextDocument{Path: req.LogPath}
	default:
		msg := fmt.Sprintf("[ERROR] Failed to read log file: %v", err)
		u.emit(res.ID, domain.EventError, msg)
		u.record(res.ID, jr, msg)
		logDoc = domain.TextDocument{Path: req.LogPath}
	}
	res.State = domain.StateLogLoaded

	// LogLoaded -> BudgetChecked
	u.emit(res.ID, domain.EventInfo, "Starting analysis...")
	if err := jr.Append("Starting analysis..."); err != nil {
		u.emit(res.ID, domain.EventError, fmt.Sprintf("[ERROR] Failed to write log file: %v", err))
		return u.finish(res, domain.StateAbortedLoadFailure, fmt.Errorf("%w: %w", ErrLoadFailure, err))
	}

	decision := u.gate.Evaluate(prompt.Content, logDoc.Content, u.opts.TokenLimit)
	res.Decision = decision
	res.State = domain.StateBudgetChecked
	u.emit(res.ID, domain.EventUsage, fmt.Sprintf(
		"[Token Usage]\nPrompt file tokens: %d\nLog file tokens: %d\nTotal tokens: %d",
		decision.PromptTokens, decision.LogTokens, decision.TotalTokens))
	u.record(res.ID, jr, fmt.Sprintf("Token count - Prompt: %d, Log: %d, Total: %d",
		decision.PromptTokens, decision.LogTokens, decision.TotalTokens))
	logger.Debug("budget evaluated",
		"prompt_tokens", decision.PromptTokens,
		"log_tokens", decision.LogTokens,
		"limit", decision.Limit,
		"passed", decision.Passed)

	// BudgetChecked -> Aborted(OverBudget)
	if !decision.Passed {
		warning := fmt.Sprintf("[WARNING] Total tokens (%d) exceed limit (%d)!", decision.TotalTokens, decision.Limit)
		u.emit(res.ID, domain.EventWarning, warning)
		u.record(res.ID, jr, warning)
		u.emit(res.ID, domain.EventDone, "Aborting: token limit exceeded.")
		return u.finish(res, domain.StateAbortedOverBudget, ErrOverBudget)
	}

	// BudgetChecked -> Completed | Aborted(ApiFailure)
	if u.completer == nil {
		err = errors.New("no completion client configured")
	} else {
		start := u.now()
		res.Response, err = u.completer.Complete(ctx, u.opts.SystemPrompt,
			buildUserPrompt(prompt, logDoc, u.opts.IncludeLog), u.opts.MaxOutputTokens)
		logger.Debug("completion finished", "model", u.completer.ModelName(), "elapsed", u.now().Sub(start), "error", err)
	}
	if err != nil {
		msg := fmt.Sprintf("Error during API call: %v", err)
		u.emit(res.ID, domain.EventError, msg)
		u.record(res.ID, jr, msg)
		return u.finish(res, domain.StateAbortedAPIFailure, fmt.Errorf("%w: %w", ErrAPIFailure, err))
	}

	u.emit(res.ID, domain.EventResponse, res.Response)
	u.record(res.ID, jr, "Analysis completed successfully.")
	u.record(res.ID, jr, "Response:\n"+res.Response)
	u.emit(res.ID, domain.EventDone, "Analysis completed successfully.")
	return u.finish(res, domain.StateCompleted, nil)
}

var errEmptyPrompt = errors.New("prompt file is empty")

func loadFailureMessage(path string, err error) string {
	switch {
	case errors.Is(err, fs.ErrNotFound):
		return fmt.Sprintf("[ERROR] Prompt file not found: %s", path)
	case errors.Is(err, errEmptyPrompt):
		return fmt.Sprintf("[ERROR] Prompt file is empty: %s", path)
	default:
		return fmt.Sprintf("[ERROR] Failed to read prompt file: %v", err)
	}
}

// buildUserPrompt is the prompt text, followed by the log content when
// includeLog is set and the log is not empty.
func buildUserPrompt(prompt, logDoc domain.TextDocument, includeLog bool) string {
	if !includeLog || strings.TrimSpace(logDoc.Content) == "" {
		return prompt.Content
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(prompt.Content, "\n"))
	sb.WriteString("\n\n--- Log file: ")
	sb.WriteString(logDoc.Path)
	sb.WriteString(" ---\n")
	sb.WriteString(logDoc.Content)
	return sb.String()
}

// record appends msg to the journal. A failed write is reported, not fatal.
func (u *AnalyzeUseCase) record(runID string, jr port.Journal, msg string) {
	if err := jr.Append(msg); err != nil {
		u.emit(runID, domain.EventError, fmt.Sprintf("[ERROR] Failed to write log file: %v", err))
		u.logger.Warn("journal write failed", "run_id", runID, "error", err)
	}
}

func (u *AnalyzeUseCase) emit(runID string, kind domain.EventKind, msg string) {
	ev := domain.Event{RunID: runID, Time: u.now(), Kind: kind, Message: msg}
	for _, sink := range u.sinks {
		sink(ev)
	}
}

func (u *AnalyzeUseCase) finish(res domain.RunResult, state domain.RunState, err error) domain.RunResult {
	res.State = state
	res.Err = err
	u.logger.Debug("run finished", "run_id", res.ID, "state", state.String())
	return res
}
