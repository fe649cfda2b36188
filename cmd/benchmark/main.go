package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"loganalyzer/config"
	"loganalyzer/internal/adapter/cache"
	"loganalyzer/internal/adapter/fs"
	"loganalyzer/internal/adapter/store"
	"loganalyzer/internal/adapter/tokenizer"
	"loganalyzer/internal/port"
)

func main() {
	dir := flag.String("dir", ".", "Directory to scan for files")
	pattern := flag.String("pattern", "**/*.log", "Files to count")
	model := flag.String("model", "", "Tokenizer model (default from config)")
	rounds := flag.Int("rounds", 3, "Warm rounds per file")
	flag.Parse()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *model == "" {
		*model = cfg.Budget.TokenizerModel
	}

	files, err := fs.NewWalker([]string{*pattern}, cfg.Launcher.Excludes).Walk(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning %s: %v\n", *dir, err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("Usage: go run ./cmd/benchmark -dir /var/log -pattern \"**/*.log\"")
		fmt.Println("\nMeasures:")
		fmt.Println("  1. Cold token counting with the tokenizer")
		fmt.Println("  2. Warm counting through the in-memory cache")
		fmt.Println("  3. Counting through the on-disk cache after a restart")
		os.Exit(1)
	}

	tmp, err := os.MkdirTemp("", "loganalyzer-bench")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmp)
	dbPath := filepath.Join(tmp, "cache.db")

	base := tokenizer.New(*model)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	fmt.Println("TOKEN COUNT BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Model: %s (encoding %s)\n", base.Model(), base.Encoding())
	fmt.Printf("Files: %d\n\n", len(files))

	loader := fs.NewLoader()
	var docs []string
	var totalBytes int64
	for _, f := range files {
		doc, err := loader.Load(f.Path)
		if err != nil {
			fmt.Printf("  skip %s: %v\n", shortPath(f.Path), err)
			continue
		}
		docs = append(docs, doc.Content)
		totalBytes += f.Size
	}

	// Cold: straight through the tokenizer.
	cold, tokens := timeCounts(base, docs, 1)

	// Warm: in-memory cache, first round fills it.
	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening cache: %v\n", err)
		os.Exit(1)
	}
	mem := cache.NewCountCache(len(docs)+1, time.Hour)
	cached := cache.NewCachedCounter(base, mem, st, logger)
	timeCounts(cached, docs, 1)
	warm, _ := timeCounts(cached, docs, *rounds)
	st.Close()

	// Restart: fresh memory, counts come from disk.
	st, err = store.NewBoltStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reopening cache: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()
	restarted := cache.NewCachedCounter(base, cache.NewCountCache(len(docs)+1, time.Hour), st, logger)
	disk, _ := timeCounts(restarted, docs, 1)

	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("  Bytes:              %d\n", totalBytes)
	fmt.Printf("  Tokens:             %d\n", tokens)
	fmt.Printf("  Cold (tokenizer):   %s\n", cold)
	fmt.Printf("  Warm (memory):      %s per round\n", warm/time.Duration(max(*rounds, 1)))
	fmt.Printf("  Restart (bbolt):    %s\n", disk)
	if cold > 0 {
		fmt.Printf("  Throughput:         %.0f tokens/s\n", float64(tokens)/cold.Seconds())
	}
}

func timeCounts(c port.TokenCounter, docs []string, rounds int) (time.Duration, int) {
	start := time.Now()
	total := 0
	for r := 0; r < rounds; r++ {
		total = 0
		for _, d := range docs {
			total += c.Count(d)
		}
	}
	return time.Since(start), total
}

func shortPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 3 {
		return ".../" + strings.Join(parts[len(parts)-3:], "/")
	}
	return path
}
