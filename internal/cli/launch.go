package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"loganalyzer/internal/adapter/fs"
	"loganalyzer/internal/domain"
	"loganalyzer/internal/port"
	"loganalyzer/internal/tui"
	"loganalyzer/internal/usecase"
)

var (
	launchInProcess bool
	launchPrompt    string
	launchLog       string
	launchAnalyzer  string
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Open the terminal launcher",
	Long: `Open a terminal front end that runs analyses, streams their output and
shows a live preview of the log file.

By default each run starts a child "loganalyzer analyze --stdin" and feeds it
the two paths. With --in-process the analysis runs inside the launcher.

Examples:
  loganalyzer launch
  loganalyzer launch --prompt prompt.txt --log app.log
  loganalyzer launch --in-process`,
	Args: cobra.NoArgs,
	RunE: runLaunch,
}

func init() {
	rootCmd.AddCommand(launchCmd)
	launchCmd.Flags().BoolVar(&launchInProcess, "in-process", false, "run analyses inside the launcher instead of a child process")
	launchCmd.Flags().StringVarP(&launchPrompt, "prompt", "p", "", "initial prompt file")
	launchCmd.Flags().StringVarP(&launchLog, "log", "l", "", "initial log file")
	launchCmd.Flags().StringVar(&launchAnalyzer, "analyzer", "", "analyzer executable (default from config, then this binary)")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := GetRootDir()
	logger := GetLogger()

	analyzer := launchAnalyzer
	if analyzer == "" {
		analyzer = cfg.Launcher.AnalyzerPath
	}
	var analyzerArgs []string
	if analyzer == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate analyzer: %w", err)
		}
		analyzer = self
		analyzerArgs = []string{"analyze", "--stdin"}
		if cfgFile != "" {
			analyzerArgs = append(analyzerArgs, "--config", cfgFile)
		}
	}

	tcfg := tui.Config{
		AnalyzerPath:     analyzer,
		AnalyzerArgs:     analyzerArgs,
		Dir:              dir,
		PromptPath:       launchPrompt,
		LogPath:          launchLog,
		PromptCandidates: candidates(fs.NewWalker(cfg.Launcher.PromptPatterns, cfg.Launcher.Excludes).WithLimit(200), dir),
		LogCandidates:    candidates(fs.NewWalker(cfg.Launcher.LogPatterns, cfg.Launcher.Excludes).WithLimit(200), dir),
		KillGrace:        cfg.Launcher.KillGrace,
	}

	if launchInProcess {
		tcfg.InProcess = func(ctx context.Context, promptPath, logPath string, sink func(domain.Event)) domain.RunResult {
			counter, closeCounter := openCounter(cfg, dir, logger)
			defer closeCounter()
			uc := newAnalyzeUseCase(cfg, dir, counter, newCompleter(cfg), logger)
			uc.Subscribe(sink)
			return uc.Run(ctx, usecase.AnalyzeRequest{PromptPath: promptPath, LogPath: logPath})
		}
		// Diagnostics would draw over the screen.
		logger = newLogger(io.Discard, "error")
	}

	return tui.Run(tcfg)
}

// candidates lists the files w finds under dir, newest first.
func candidates(w port.FileWalker, dir string) []string {
	files, err := w.Walk(dir)
	if err != nil {
		GetLogger().Debug("candidate scan failed", "dir", dir, "error", err)
		return nil
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return paths
}
