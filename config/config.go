package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the analyzer.
type Config struct {
	Azure    AzureConfig    `yaml:"azure"`
	Budget   BudgetConfig   `yaml:"budget"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Cache    CacheConfig    `yaml:"cache"`
	Launcher LauncherConfig `yaml:"launcher"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AzureConfig holds the chat completion endpoint settings.
type AzureConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"-"` // only from the environment
	APIVersion string        `yaml:"api_version"`
	Deployment string        `yaml:"deployment"`
	Timeout    time.Duration `yaml:"timeout"`
}

// BudgetConfig holds the token gate settings.
type BudgetConfig struct {
	TokenLimit      int    `yaml:"token_limit"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	TokenizerModel  string `yaml:"tokenizer_model"`
}

// AnalysisConfig holds what is sent to the model.
type AnalysisConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
	IncludeLog   bool   `yaml:"include_log"`
}

// CacheConfig holds the token count cache settings.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Path       string        `yaml:"path"` // default .loganalyzer/cache.db under the working dir
	MemEntries int           `yaml:"mem_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// LauncherConfig holds the launcher front end settings.
type LauncherConfig struct {
	AnalyzerPath   string        `yaml:"analyzer_path"` // default: this executable
	PromptPatterns []string      `yaml:"prompt_patterns"`
	LogPatterns    []string      `yaml:"log_patterns"`
	Excludes       []string      `yaml:"excludes"`
	KillGrace      time.Duration `yaml:"kill_grace"`
}

// LoggingConfig holds diagnostic logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Azure: AzureConfig{
			APIVersion: "2024-08-01-preview",
			Deployment: "gpt-4.1",
			Timeout:    120 * time.Second,
		},
		Budget: BudgetConfig{
			TokenLimit:      13000,
			MaxOutputTokens: 4096,
			TokenizerModel:  "gpt-4o",
		},
		Analysis: AnalysisConfig{
			SystemPrompt: "Expert Linux debugging engineer",
			IncludeLog:   true,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MemEntries: 256,
			TTL:        30 * time.Minute,
		},
		Launcher: LauncherConfig{
			PromptPatterns: []string{"**/*.txt", "**/*.md", "**/*.prompt"},
			LogPatterns:    []string{"**/*.log", "**/*.txt"},
			Excludes:       []string{".git/**", "**/node_modules/**", "**/vendor/**", ".loganalyzer/**"},
			KillGrace:      200 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for loganalyzer.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "loganalyzer.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".loganalyzer", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadDotEnv loads a .env file from dir into the process environment.
// Variables already set are not overridden; a missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables on top of the file configuration.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	setString(&c.Azure.Endpoint, getenv("AZURE_OPENAI_ENDPOINT"))
	setString(&c.Azure.APIKey, getenv("AZURE_OPENAI_API_KEY"))
	setString(&c.Azure.APIVersion, getenv("AZURE_OPENAI_API_VERSION"))
	setString(&c.Azure.Deployment, getenv("AZURE_OPENAI_DEPLOYMENT"))
	setString(&c.Budget.TokenizerModel, getenv("LOGANALYZER_TOKENIZER_MODEL"))
	setString(&c.Logging.Level, getenv("LOGANALYZER_LOG_LEVEL"))

	var errs []error
	if err := setInt(&c.Budget.TokenLimit, "LOGANALYZER_TOKEN_LIMIT", getenv); err != nil {
		errs = append(errs, err)
	}
	if err := setInt(&c.Budget.MaxOutputTokens, "LOGANALYZER_MAX_OUTPUT_TOKENS", getenv); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateBudget checks the token gate settings. Every command that counts
// or analyzes depends on them.
func (c *Config) ValidateBudget() error {
	var problems []string
	if c.Budget.TokenLimit <= 0 {
		problems = append(problems, fmt.Sprintf("token_limit must be positive, got %d", c.Budget.TokenLimit))
	}
	if c.Budget.MaxOutputTokens <= 0 {
		problems = append(problems, fmt.Sprintf("max_output_tokens must be positive, got %d", c.Budget.MaxOutputTokens))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// CachePath returns the count cache location for a working directory.
func (c *Config) CachePath(dir string) string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return filepath.Join(DataDir(dir), "cache.db")
}

// DataDir is the per-project directory for the cache and journal locks.
func DataDir(dir string) string {
	return filepath.Join(dir, ".loganalyzer")
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string, getenv func(string) string) error {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}
