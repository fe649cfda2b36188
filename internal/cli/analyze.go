package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"loganalyzer/internal/port"
	"loganalyzer/internal/usecase"
)

var (
	analyzePrompt    string
	analyzeLog       string
	analyzeStdin     bool
	analyzeLimit     int
	analyzeMaxOutput int
	analyzeNoLog     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a log file with a prompt",
	Long: `Count the tokens of the prompt and log files, and when they fit the budget,
send them to the configured Azure OpenAI deployment. Every step is appended
to the log file.

Without --prompt and --log, the two paths are read from standard input, one
per line, which is how the launcher drives this command.

Examples:
  loganalyzer analyze --prompt prompt.txt --log /var/log/app.log
  loganalyzer analyze --limit 8000 -p prompt.txt -l app.log
  printf 'prompt.txt\napp.log\n' | loganalyzer analyze --stdin`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzePrompt, "prompt", "p", "", "path to the prompt file")
	analyzeCmd.Flags().StringVarP(&analyzeLog, "log", "l", "", "path to the log file (created if missing)")
	analyzeCmd.Flags().BoolVar(&analyzeStdin, "stdin", false, "read the prompt and log paths from standard input")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "token limit (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeMaxOutput, "max-output-tokens", 0, "maximum completion tokens (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeNoLog, "no-log-content", false, "send only the prompt, not the log content")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := GetLogger()
	out := cmd.OutOrStdout()

	if analyzeLimit > 0 {
		cfg.Budget.TokenLimit = analyzeLimit
	}
	if analyzeMaxOutput > 0 {
		cfg.Budget.MaxOutputTokens = analyzeMaxOutput
	}
	if analyzeNoLog {
		cfg.Analysis.IncludeLog = false
	}

	promptPath, logPath := analyzePrompt, analyzeLog
	switch {
	case analyzeStdin || (promptPath == "" && logPath == ""):
		var err error
		promptPath, logPath, err = readPaths(cmd.InOrStdin(), out, isTerminal(os.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read paths from stdin: %w", err)
		}
	case promptPath == "" || logPath == "":
		return fmt.Errorf("both --prompt and --log are required")
	}

	counter, closeCounter := openCounter(cfg, GetRootDir(), logger)
	defer closeCounter()

	var completer port.Completer = newCompleter(cfg)
	if isTerminal(os.Stderr) {
		completer = &spinnerCompleter{next: completer, w: cmd.ErrOrStderr()}
	}

	uc := newAnalyzeUseCase(cfg, GetRootDir(), counter, completer, logger)
	uc.Subscribe(usecase.ConsoleSink(out))

	res := uc.Run(cmd.Context(), usecase.AnalyzeRequest{PromptPath: promptPath, LogPath: logPath})
	logger.Info("analysis finished", "run_id", res.ID, "state", res.State.String())

	// Every terminal state has already been reported on the console and in
	// the log; only interruption is an error for the caller.
	if errors.Is(res.Err, context.Canceled) {
		return res.Err
	}
	return nil
}

// readPaths reads the prompt and log paths, one per line. Prompts end with a
// newline when input is not a terminal so line-oriented readers see them
// whole.
func readPaths(in io.Reader, out io.Writer, interactive bool) (string, string, error) {
	r := bufio.NewReader(in)
	ask := func(label string) (string, error) {
		if interactive {
			fmt.Fprint(out, label)
		} else {
			fmt.Fprintln(out, label)
		}
		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	promptPath, err := ask("Enter path to prompt file: ")
	if err != nil {
		return "", "", fmt.Errorf("prompt path: %w", err)
	}
	logPath, err := ask("Enter path to log file: ")
	if err != nil {
		return "", "", fmt.Errorf("log path: %w", err)
	}
	return promptPath, logPath, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// spinnerCompleter shows a spinner on w while the completion call is in flight.
type spinnerCompleter struct {
	next port.Completer
	w    io.Writer
}

func (s *spinnerCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription(fmt.Sprintf("Waiting for %s", s.next.ModelName())),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	text, err := s.next.Complete(ctx, systemPrompt, userPrompt, maxOutputTokens)
	close(done)
	_ = bar.Finish()
	return text, err
}

func (s *spinnerCompleter) ModelName() string {
	return s.next.ModelName()
}
