package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"loganalyzer/internal/adapter/fs"
	"loganalyzer/internal/domain"
)

var (
	countLimit int
	countJSON  bool
)

var countCmd = &cobra.Command{
	Use:   "count FILE...",
	Short: "Count tokens without calling the API",
	Long: `Count the tokens of each file with the configured tokenizer and check the
total against the token limit. Nothing is sent and nothing is logged.

Examples:
  loganalyzer count prompt.txt app.log
  loganalyzer count --json prompt.txt app.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)
	countCmd.Flags().IntVar(&countLimit, "limit", 0, "token limit (default from config)")
	countCmd.Flags().BoolVar(&countJSON, "json", false, "output as JSON")
}

// FileCount is one row of the count report.
type FileCount struct {
	Path   string `json:"path"`
	Tokens int    `json:"tokens"`
	Error  string `json:"error,omitempty"`
}

type countReport struct {
	Model    string                `json:"model"`
	Files    []FileCount           `json:"files"`
	Decision domain.BudgetDecision `json:"decision"`
}

func runCount(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	limit := cfg.Budget.TokenLimit
	if countLimit > 0 {
		limit = countLimit
	}

	counter, closeCounter := openCounter(cfg, GetRootDir(), GetLogger())
	defer closeCounter()

	loader := fs.NewLoader()
	report := countReport{Model: counter.Model()}
	total := 0
	for _, path := range args {
		fc := FileCount{Path: path}
		doc, err := loader.Load(path)
		if err != nil {
			fc.Error = err.Error()
		} else {
			fc.Tokens = counter.Count(doc.Content)
			total += fc.Tokens
		}
		report.Files = append(report.Files, fc)
	}
	report.Decision = domain.BudgetDecision{
		TotalTokens: total,
		Limit:       limit,
		Passed:      total <= limit,
	}
	// With exactly two files they are read as prompt and log.
	if len(report.Files) == 2 {
		report.Decision.PromptTokens = report.Files[0].Tokens
		report.Decision.LogTokens = report.Files[1].Tokens
	}

	if countJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, fc := range report.Files {
		if fc.Error != "" {
			fmt.Fprintf(tw, "%s\t-\t%s\n", filepath.Clean(fc.Path), fc.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t\n", filepath.Clean(fc.Path), fc.Tokens)
	}
	tw.Flush()

	fmt.Fprintf(out, "\nTotal tokens: %d (limit %d, tokenizer %s)\n", total, limit, report.Model)
	if report.Decision.Passed {
		fmt.Fprintf(out, "Within budget, %d tokens to spare.\n", limit-total)
	} else {
		fmt.Fprintf(out, "[WARNING] Total tokens (%d) exceed limit (%d)!\n", total, limit)
	}
	return nil
}
