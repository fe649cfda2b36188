package usecase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"loganalyzer/internal/adapter/fs"
	"loganalyzer/internal/adapter/journal"
	"loganalyzer/internal/adapter/tokenizer"
	"loganalyzer/internal/domain"
	"loganalyzer/internal/port"
)

type fakeCompleter struct {
	calls  int
	system string
	user   string
	max    int
	reply  string
	err    error
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error) {
	f.calls++
	f.system = systemPrompt
	f.user = userPrompt
	f.max = maxOutputTokens
	return f.reply, f.err
}

func (f *fakeCompleter) ModelName() string { return "fake-deployment" }

type fixture struct {
	dir        string
	promptPath string
	logPath    string
	events     []domain.Event
	console    bytes.Buffer
}

func newFixture(t *testing.T, prompt string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:        dir,
		promptPath: filepath.Join(dir, "prompt.txt"),
		logPath:    filepath.Join(dir, "analysis.log"),
	}
	if err := os.WriteFile(f.promptPath, []byte(prompt), 0644); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) useCase(counter port.TokenCounter, completer *fakeCompleter, limit int) *AnalyzeUseCase {
	return NewAnalyzeUseCase(fs.NewLoader(), counter, completer, AnalyzeOptions{
		TokenLimit:      limit,
		MaxOutputTokens: 4096,
		IncludeLog:      true,
		LockDir:         filepath.Join(f.dir, "locks"),
	}, nil)
}

func (f *fixture) run(t *testing.T, counter port.TokenCounter, completer *fakeCompleter, limit int) domain.RunResult {
	t.Helper()
	return f.runWith(t, f.useCase(counter, completer, limit))
}

func (f *fixture) runWith(t *testing.T, uc *AnalyzeUseCase) domain.RunResult {
	t.Helper()
	uc.Subscribe(func(ev domain.Event) { f.events = append(f.events, ev) })
	uc.Subscribe(ConsoleSink(&f.console))
	return uc.Run(context.Background(), AnalyzeRequest{PromptPath: f.promptPath, LogPath: f.logPath})
}

func (f *fixture) journal(t *testing.T) []string {
	t.Helper()
	entries, err := journal.ReadEntries(f.logPath)
	if err != nil {
		t.Fatal(err)
	}
	msgs := make([]string, len(entries))
	for i, e := range entries {
		msgs[i] = e.Message
	}
	return msgs
}

func TestAnalyze_ScenarioA_PingWithoutLog(t *testing.T) {
	f := newFixture(t, "ping")
	counter := tokenizer.New("gpt-4o")
	k1 := counter.Count("ping")
	completer := &fakeCompleter{reply: "Looks healthy.\nNothing to fix."}

	res := f.run(t, counter, completer, 13000)

	if res.State != domain.StateCompleted {
		t.Fatalf("expected completed, got %s (err=%v)", res.State, res.Err)
	}
	if res.Err != nil {
		t.Errorf("unexpected error: %v", res.Err)
	}
	if completer.calls != 1 {
		t.Errorf("expected exactly one completion call, got %d", completer.calls)
	}
	if completer.system != DefaultSystemPrompt {
		t.Errorf("unexpected system prompt %q", completer.system)
	}
	if completer.user != "ping" {
		t.Errorf("expected user prompt to be the prompt only, got %q", completer.user)
	}
	if completer.max != 4096 {
		t.Errorf("expected max output 4096, got %d", completer.max)
	}
	if res.Decision.PromptTokens != k1 || res.Decision.LogTokens != 0 || res.Decision.TotalTokens != k1 {
		t.Errorf("unexpected decision %+v (k1=%d)", res.Decision, k1)
	}

	want := []string{
		"Starting analysis...",
		"Token count - Prompt: " + strconv.Itoa(k1) + ", Log: 0, Total: " + strconv.Itoa(k1),
		"Analysis completed successfully.",
		"Response:\nLooks healthy.\nNothing to fix.",
	}
	assertEntries(t, f.journal(t), want)

	if !strings.Contains(f.console.String(), "=== Response ===") {
		t.Errorf("expected response block on console, got:\n%s", f.console.String())
	}
}

func TestAnalyze_ScenarioB_OverBudget(t *testing.T) {
	f := newFixture(t, strings.Repeat("p", 6000))
	if err := os.WriteFile(f.logPath, []byte(strings.Repeat("l", 7000)+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	completer := &fakeCompleter{reply: "never"}

	res := f.run(t, byteCounter{}, completer, 13000)

	if res.State != domain.StateAbortedOverBudget {
		t.Fatalf("expected over-budget abort, got %s", res.State)
	}
	if !errors.Is(res.Err, ErrOverBudget) {
		t.Errorf("expected ErrOverBudget, got %v", res.Err)
	}
	if completer.calls != 0 {
		t.Errorf("completion client must not be called, got %d calls", completer.calls)
	}
	if res.Decision.TotalTokens != 13001 || res.Decision.Passed {
		t.Errorf("unexpected decision %+v", res.Decision)
	}

	entries := f.journal(t)
	// The first entry is the pre-existing log content.
	assertEntries(t, entries[1:], []string{
		"Starting analysis...",
		"Token count - Prompt: 6000, Log: 7001, Total: 13001",
		"[WARNING] Total tokens (13001) exceed limit (13000)!",
	})
	if !strings.Contains(f.console.String(), "Aborting: token limit exceeded.") {
		t.Errorf("expected abort notice on console, got:\n%s", f.console.String())
	}
}

func TestAnalyze_ScenarioC_APIError(t *testing.T) {
	f := newFixture(t, "ping")
	completer := &fakeCompleter{err: errors.New("dial tcp: connection refused")}

	res := f.run(t, byteCounter{}, completer, 13000)

	if res.State != domain.StateAbortedAPIFailure {
		t.Fatalf("expected api failure, got %s", res.State)
	}
	if !errors.Is(res.Err, ErrAPIFailure) {
		t.Errorf("expected ErrAPIFailure, got %v", res.Err)
	}

	assertEntries(t, f.journal(t), []string{
		"Starting analysis...",
		"Token count - Prompt: 4, Log: 0, Total: 4",
		"Error during API call: dial tcp: connection refused",
	})
}

func TestAnalyze_MissingPromptAborts(t *testing.T) {
	f := newFixture(t, "unused")
	f.promptPath = filepath.Join(f.dir, "missing.txt")
	completer := &fakeCompleter{}

	res := f.run(t, byteCounter{}, completer, 13000)

	if res.State != domain.StateAbortedLoadFailure {
		t.Fatalf("expected load failure, got %s", res.State)
	}
	if !errors.Is(res.Err, ErrLoadFailure) || !errors.Is(res.Err, fs.ErrNotFound) {
		t.Errorf("expected load failure wrapping not-found, got %v", res.Err)
	}
	if completer.calls != 0 {
		t.Error("completion client must not be called")
	}
	assertEntries(t, f.journal(t), []string{
		"[ERROR] Prompt file not found: " + f.promptPath,
	})
}

func TestAnalyze_EmptyPromptAborts(t *testing.T) {
	f := newFixture(t, "")
	completer := &fakeCompleter{}

	res := f.run(t, byteCounter{}, completer, 13000)

	if res.State != domain.StateAbortedLoadFailure {
		t.Fatalf("expected load failure, got %s", res.State)
	}
	if completer.calls != 0 {
		t.Error("completion client must not be called")
	}
	assertEntries(t, f.journal(t), []string{
		"[ERROR] Prompt file is empty: " + f.promptPath,
	})
}

func TestAnalyze_WhitespacePromptProceeds(t *testing.T) {
	f := newFixture(t, "  \n")
	completer := &fakeCompleter{reply: "nothing asked"}

	res := f.run(t, byteCounter{}, completer, 13000)

	if res.State != domain.StateCompleted {
		t.Fatalf("expected completed, got %s (err=%v)", res.State, res.Err)
	}
	if completer.calls != 1 {
		t.Errorf("expected one completion call, got %d", completer.calls)
	}
	if res.Decision.PromptTokens != 3 {
		t.Errorf("expected whitespace to be counted, got %d prompt tokens", res.Decision.PromptTokens)
	}
}

// failAfter accepts n entries and then fails every write.
type failAfter struct {
	n       int
	entries []string
}

func (j *failAfter) Append(message string) error {
	if len(j.entries) >= j.n {
		return errors.New("disk full")
	}
	j.entries = append(j.entries, message)
	return nil
}

func TestAnalyze_JournalFailureAfterStartIsReported(t *testing.T) {
	f := newFixture(t, "ping")
	jr := &failAfter{n: 1}
	var opened string
	uc := f.useCase(byteCounter{}, &fakeCompleter{reply: "ok"}, 13000).
		WithJournal(func(path string) port.Journal {
			opened = path
			return jr
		})

	res := f.runWith(t, uc)

	if opened != f.logPath {
		t.Errorf("expected journal for %s, got %s", f.logPath, opened)
	}
	if res.State != domain.StateCompleted {
		t.Fatalf("later journal failures must not abort the run, got %s", res.State)
	}
	assertEntries(t, jr.entries, []string{"Starting analysis..."})

	var failures int
	for _, ev := range f.events {
		if ev.Kind == domain.EventError && strings.HasPrefix(ev.Message, "[ERROR] Failed to write log file: disk full") {
			failures++
		}
	}
	// Token count, completion notice and response.
	if failures != 3 {
		t.Errorf("expected 3 write failures reported, got %d", failures)
	}
}

func TestAnalyze_JournalFailureOnStartAborts(t *testing.T) {
	f := newFixture(t, "ping")
	completer := &fakeCompleter{reply: "never"}
	uc := f.useCase(byteCounter{}, completer, 13000).
		WithJournal(func(string) port.Journal { return &failAfter{} })

	res := f.runWith(t, uc)

	if res.State != domain.StateAbortedLoadFailure {
		t.Fatalf("expected load failure, got %s", res.State)
	}
	if completer.calls != 0 {
		t.Error("completion client must not be called")
	}
}

func TestAnalyze_IncludesExistingLog(t *testing.T) {
	f := newFixture(t, "why did it crash?\n")
	if err := os.WriteFile(f.logPath, []byte("segfault at 0x0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	completer := &fakeCompleter{reply: "null deref"}

	res := f.run(t, byteCounter{}, completer, 13000)

	if res.State != domain.StateCompleted {
		t.Fatalf("expected completed, got %s", res.State)
	}
	if !strings.HasPrefix(completer.user, "why did it crash?") || !strings.Contains(completer.user, "segfault at 0x0") {
		t.Errorf("expected prompt and log in user message, got %q", completer.user)
	}
	if res.Decision.LogTokens != len("segfault at 0x0\n") {
		t.Errorf("unexpected log tokens %d", res.Decision.LogTokens)
	}
}

func TestAnalyze_UnwritableLogAborts(t *testing.T) {
	f := newFixture(t, "ping")
	f.logPath = filepath.Join(f.dir, "no", "such", "dir", "analysis.log")
	completer := &fakeCompleter{}

	res := f.run(t, byteCounter{}, completer, 13000)

	if res.State != domain.StateAbortedLoadFailure {
		t.Fatalf("expected load failure, got %s", res.State)
	}
	if completer.calls != 0 {
		t.Error("completion client must not be called")
	}
}

func TestAnalyze_EventOrder(t *testing.T) {
	f := newFixture(t, "ping")
	res := f.run(t, byteCounter{}, &fakeCompleter{reply: "ok"}, 13000)

	kinds := make([]domain.EventKind, len(f.events))
	for i, ev := range f.events {
		if ev.RunID != res.ID {
			t.Errorf("event %d has run id %q, want %q", i, ev.RunID, res.ID)
		}
		kinds[i] = ev.Kind
	}
	want := []domain.EventKind{
		domain.EventInfo, // log not found
		domain.EventInfo, // starting analysis
		domain.EventUsage,
		domain.EventResponse,
		domain.EventDone,
	}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(kinds), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := domain.TextDocument{Path: "p", Content: "question\n"}
	logDoc := domain.TextDocument{Path: "/var/log/app.log", Content: "boom\n"}

	if got := buildUserPrompt(prompt, logDoc, false); got != "question\n" {
		t.Errorf("expected prompt only, got %q", got)
	}
	if got := buildUserPrompt(prompt, domain.TextDocument{}, true); got != "question\n" {
		t.Errorf("expected prompt only for empty log, got %q", got)
	}
	want := "question\n\n--- Log file: /var/log/app.log ---\nboom\n"
	if got := buildUserPrompt(prompt, logDoc, true); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func assertEntries(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d journal entries, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
