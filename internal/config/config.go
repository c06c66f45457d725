package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model. It is built once per
// invocation and passed into the stage runners; nothing reads it from a
// package-level global.
type Config struct {
	Accounts  AccountsConfig  `yaml:"accounts"`
	Provider  ProviderConfig  `yaml:"provider"`
	LLM       LLMConfig       `yaml:"llm"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Article   ArticleConfig   `yaml:"article"`
	Storage   StorageConfig   `yaml:"storage"`
}

type AccountsConfig struct {
	// Handles of the curated accounts to collect, without the @.
	Usernames []string `yaml:"usernames"`
	// Collection stops at posts created before this date (YYYY-MM-DD).
	CutoffDate string `yaml:"cutoffDate"`
}

type ProviderConfig struct {
	BaseURL string `yaml:"baseURL"`
	// Provider API key. If empty, read from env TWITTER_API_IO_KEY.
	APIKey string `yaml:"apiKey"`
}

type LLMConfig struct {
	BaseURL string `yaml:"baseURL"`
	// OpenRouter API key. If empty, read from env OPENROUTER_API_KEY.
	APIKey string `yaml:"apiKey"`
	// Tier name -> provider model identifier.
	Models map[string]string `yaml:"models"`
	// Tier used when the CLI does not select one.
	DefaultTier string `yaml:"defaultTier"`
}

type ScoringConfig struct {
	// Whether re-running the score stage may accumulate multiple ranks
	// per post. The original system allowed this.
	AllowDuplicateRanks bool `yaml:"allowDuplicateRanks"`
}

type ArticleConfig struct {
	// Minimum rank score for a post to become article source material.
	MinScore int `yaml:"minScore"`
	// Maximum number of source posts per article.
	MaxSources int `yaml:"maxSources"`
	// Emit per-paragraph citations instead of a single body string.
	Cited bool `yaml:"cited"`
	// Directory the rendered markdown documents are written to.
	OutputDir string `yaml:"outputDir"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Accounts: AccountsConfig{
			Usernames:  []string{"VitalikButerin"},
			CutoffDate: "2025-05-07",
		},
		Provider: ProviderConfig{BaseURL: "https://api.twitterapi.io"},
		LLM: LLMConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Models: map[string]string{
				"free":  "deepseek/deepseek-chat-v3-0324:free",
				"fast":  "google/gemini-2.0-flash-001",
				"smart": "anthropic/claude-sonnet-4",
			},
			DefaultTier: "free",
		},
		Scoring: ScoringConfig{AllowDuplicateRanks: true},
		Article: ArticleConfig{
			MinScore:   7,
			MaxSources: 10,
			Cited:      false,
			OutputDir:  "./articles",
		},
		Storage: StorageConfig{DBPath: "./news_data.db"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Provider.APIKey == "" {
		c.Provider.APIKey = os.Getenv("TWITTER_API_IO_KEY")
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
}

// ModelForTier resolves a tier name to the configured model identifier.
func (c Config) ModelForTier(tier string) (string, error) {
	if tier == "" {
		tier = c.LLM.DefaultTier
	}
	m, ok := c.LLM.Models[tier]
	if !ok || m == "" {
		return "", fmt.Errorf("no model configured for tier %q", tier)
	}
	return m, nil
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
