package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"loganalyzer/config"
	"loganalyzer/internal/adapter/azure"
	"loganalyzer/internal/adapter/cache"
	"loganalyzer/internal/adapter/fs"
	"loganalyzer/internal/adapter/store"
	"loganalyzer/internal/adapter/tokenizer"
	"loganalyzer/internal/port"
	"loganalyzer/internal/usecase"
)

// openCounter returns the token counter for cfg, memoized in memory and, when
// the cache file can be opened, on disk. The returned func releases the
// cache file.
func openCounter(cfg *config.Config, dir string, logger *slog.Logger) (port.TokenCounter, func()) {
	base := tokenizer.New(cfg.Budget.TokenizerModel)
	if base.FellBack() {
		logger.Warn("unknown tokenizer model, using default encoding",
			"model", cfg.Budget.TokenizerModel, "encoding", base.Encoding())
	}
	if !cfg.Cache.Enabled {
		return base, func() {}
	}

	mem := cache.NewCountCache(cfg.Cache.MemEntries, cfg.Cache.TTL)
	st, err := openCountStore(cfg, dir, fingerprint(base))
	if err != nil {
		logger.Debug("count cache unavailable, counting uncached", "error", err)
		return cache.NewCachedCounter(base, mem, nil, logger), func() {}
	}
	return cache.NewCachedCounter(base, mem, st, logger), func() { st.Close() }
}

// openCountStore opens the bolt count store and brings its schema up to date.
func openCountStore(cfg *config.Config, dir, fp string) (*store.BoltStore, error) {
	path := cfg.CachePath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	st, err := store.NewBoltStore(path)
	if err != nil {
		return nil, err
	}
	if _, err := st.Prepare(fp); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// fingerprint identifies the tokenizer that produced stored counts.
func fingerprint(c *tokenizer.Counter) string {
	return c.Model() + "/" + c.Encoding()
}

func newCompleter(cfg *config.Config) *azure.LazyClient {
	return azure.NewLazyClient(azure.Options{
		Endpoint:   cfg.Azure.Endpoint,
		APIKey:     cfg.Azure.APIKey,
		APIVersion: cfg.Azure.APIVersion,
		Deployment: cfg.Azure.Deployment,
		Timeout:    cfg.Azure.Timeout,
	})
}

func newAnalyzeUseCase(cfg *config.Config, dir string, counter port.TokenCounter, completer port.Completer, logger *slog.Logger) *usecase.AnalyzeUseCase {
	return usecase.NewAnalyzeUseCase(fs.NewLoader(), counter, completer, usecase.AnalyzeOptions{
		TokenLimit:      cfg.Budget.TokenLimit,
		MaxOutputTokens: cfg.Budget.MaxOutputTokens,
		SystemPrompt:    cfg.Analysis.SystemPrompt,
		IncludeLog:      cfg.Analysis.IncludeLog,
		LockDir:         filepath.Join(config.DataDir(dir), "locks"),
	}, logger)
}
