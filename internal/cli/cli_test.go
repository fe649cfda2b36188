package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loganalyzer/internal/adapter/journal"
	"loganalyzer/internal/adapter/tokenizer"
)

func TestReadPaths(t *testing.T) {
	var out bytes.Buffer
	prompt, logPath, err := readPaths(strings.NewReader(" prompt.txt \n/var/log/app.log"), &out, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt != "prompt.txt" || logPath != "/var/log/app.log" {
		t.Errorf("unexpected paths %q, %q", prompt, logPath)
	}
	want := "Enter path to prompt file: \nEnter path to log file: \n"
	if out.String() != want {
		t.Errorf("expected prompts %q, got %q", want, out.String())
	}
}

func TestReadPaths_Interactive(t *testing.T) {
	var out bytes.Buffer
	if _, _, err := readPaths(strings.NewReader("a\nb\n"), &out, true); err != nil {
		t.Fatal(err)
	}
	if out.String() != "Enter path to prompt file: Enter path to log file: " {
		t.Errorf("unexpected prompts %q", out.String())
	}
}

func TestReadPaths_MissingLogLine(t *testing.T) {
	_, _, err := readPaths(strings.NewReader("prompt.txt\n"), &bytes.Buffer{}, false)
	if err == nil || !strings.Contains(err.Error(), "log path") {
		t.Errorf("expected log path error, got %v", err)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"error", slog.LevelError},
		{"", slog.LevelWarn},
		{"verbose", slog.LevelWarn},
	}
	for _, tt := range tests {
		l := newLogger(&bytes.Buffer{}, tt.level)
		if !l.Enabled(context.Background(), tt.want) {
			t.Errorf("%q: expected level %s enabled", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && l.Enabled(context.Background(), tt.want-4) {
			t.Errorf("%q: expected level below %s disabled", tt.level, tt.want)
		}
	}
}

func TestCountCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	prompt := filepath.Join(dir, "prompt.txt")
	logPath := filepath.Join(dir, "app.log")
	if err := os.WriteFile(prompt, []byte("why did the service crash?"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(logPath, []byte("panic: runtime error\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rootDir = ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"count", "--dir", dir, "--json", "--limit", "1000", prompt, logPath})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootDir = ""
		countJSON = false
		countLimit = 0
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("count failed: %v", err)
	}

	var report countReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if len(report.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(report.Files))
	}
	d := report.Decision
	if d.PromptTokens <= 0 || d.LogTokens <= 0 || d.TotalTokens != d.PromptTokens+d.LogTokens {
		t.Errorf("unexpected decision %+v", d)
	}
	if d.Limit != 1000 || !d.Passed {
		t.Errorf("expected pass against 1000, got %+v", d)
	}
	if _, err := os.Stat(filepath.Join(dir, ".loganalyzer", "cache.db")); err != nil {
		t.Errorf("expected count cache to be created: %v", err)
	}
}

// executeRoot runs the root command with in as standard input and resets the
// package-level flag state afterwards.
func executeRoot(t *testing.T, in string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootDir = ""
	rootCmd.SetIn(strings.NewReader(in))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
		rootDir = ""
		analyzePrompt, analyzeLog = "", ""
		analyzeStdin = false
		analyzeLimit, analyzeMaxOutput = 0, 0
		analyzeNoLog = false
		countJSON = false
		countLimit = 0
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAnalyzeCommand_StdinOverBudget(t *testing.T) {
	dir := t.TempDir()
	prompt := filepath.Join(dir, "prompt.txt")
	logPath := filepath.Join(dir, "app.log")
	const question = "why did the service crash at midnight?"
	if err := os.WriteFile(prompt, []byte(question), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := executeRoot(t, prompt+"\n"+logPath+"\n", "analyze", "--stdin", "--limit", "1", "--dir", dir)
	if err != nil {
		t.Fatalf("an over-budget run is a handled outcome, got %v", err)
	}
	if !strings.Contains(out, "Enter path to prompt file: ") || !strings.Contains(out, "Enter path to log file: ") {
		t.Errorf("expected both path prompts, got:\n%s", out)
	}
	if !strings.Contains(out, "Aborting: token limit exceeded.") {
		t.Errorf("expected abort notice, got:\n%s", out)
	}

	n := tokenizer.New("gpt-4o").Count(question)
	entries, err := journal.ReadEntries(logPath)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"Starting analysis...",
		fmt.Sprintf("Token count - Prompt: %d, Log: 0, Total: %d", n, n),
		fmt.Sprintf("[WARNING] Total tokens (%d) exceed limit (1)!", n),
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d journal entries, got %d: %+v", len(want), len(entries), entries)
	}
	for i := range want {
		if entries[i].Message != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], entries[i].Message)
		}
	}
	if _, err := os.Stat(logPath + ".lock"); !os.IsNotExist(err) {
		t.Errorf("no lock file may be left next to the log, stat err=%v", err)
	}
}

func TestAnalyzeCommand_MissingPromptIsHandled(t *testing.T) {
	dir := t.TempDir()
	prompt := filepath.Join(dir, "missing.txt")
	logPath := filepath.Join(dir, "app.log")

	out, err := executeRoot(t, prompt+"\n"+logPath+"\n", "analyze", "--stdin", "--dir", dir)
	if err != nil {
		t.Fatalf("a missing prompt is a handled outcome, got %v", err)
	}
	if !strings.Contains(out, "Prompt file not found: "+prompt) {
		t.Errorf("expected not-found notice, got:\n%s", out)
	}
	entries, err := journal.ReadEntries(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Message != "[ERROR] Prompt file not found: "+prompt {
		t.Errorf("unexpected journal %+v", entries)
	}
}

func TestRootCommand_RejectsNonPositiveBudget(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
		want string
	}{
		{"zero limit", "budget:\n  token_limit: 0\n", "token_limit must be positive"},
		{"zero output", "budget:\n  max_output_tokens: 0\n", "max_output_tokens must be positive"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "loganalyzer.yaml"), []byte(tc.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			prompt := filepath.Join(dir, "prompt.txt")
			if err := os.WriteFile(prompt, []byte("ping"), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := executeRoot(t, "", "count", "--dir", dir, prompt)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
