package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"newsforge/internal/cmdlog"
	"newsforge/internal/config"
	"newsforge/internal/jobs"
	"newsforge/internal/llm"
	"newsforge/internal/metrics"
	"newsforge/internal/store/newsdb"
	"newsforge/internal/theme"
	"newsforge/internal/xclient"
)

var (
	cfgPath string
	tier    string
	date    string
	cutoff  string
	cited   bool
)

var rootCmd = &cobra.Command{
	Use:          "newsforge",
	Short:        "Collect curated posts, score them, and write a daily news article",
	SilenceUsage: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if err := config.Save(cfgPath, cfg); err != nil {
			return err
		}
		abs, _ := filepath.Abs(cfgPath)
		theme.PrintBanner()
		fmt.Println("Config written to:", abs)
		return nil
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch and store posts for the configured accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("collect", func() error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()
			src := xclient.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.APIKey)
			return jobs.RunCollect(cmd.Context(), db, src, cfg)
		})
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score every stored post that has no rank yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("score", func() error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()
			client := llm.NewHTTPClient(cfg.LLM.BaseURL, cfg.LLM.APIKey)
			return jobs.RunScore(cmd.Context(), db, client, cfg, tier)
		})
	},
}

var articleCmd = &cobra.Command{
	Use:   "write-article",
	Short: "Generate a markdown article from a day's top-ranked posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("write-article", func() error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()
			if cited {
				cfg.Article.Cited = true
			}
			client := llm.NewHTTPClient(cfg.LLM.BaseURL, cfg.LLM.APIKey)
			path, err := jobs.RunArticle(cmd.Context(), db, client, cfg, tier, date)
			if err != nil {
				return err
			}
			fmt.Println("Article written to:", path)
			return nil
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Collect, score, and write the article in one pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("run-all", func() error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()
			if cited {
				cfg.Article.Cited = true
			}
			src := xclient.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.APIKey)
			client := llm.NewHTTPClient(cfg.LLM.BaseURL, cfg.LLM.APIKey)
			path, err := jobs.RunAll(cmd.Context(), db, src, client, cfg, tier, date)
			if err != nil {
				return err
			}
			fmt.Println("Article written to:", path)
			return nil
		})
	},
}

var podcastCmd = &cobra.Command{
	Use:   "podcast",
	Short: "Generate a podcast from the latest article (not implemented)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("podcast", func() error {
			return jobs.RunPodcast()
		})
	},
}

// setup loads the config, applies env and flag overrides, opens the
// store, and starts the optional metrics endpoint.
func setup() (config.Config, *newsdb.DB, error) {
	cfg, err := config.Load(cfgPath)
	if os.IsNotExist(err) {
		cfg = config.Default()
		cfg.ResolveEnv()
		err = nil
	}
	if err != nil {
		return config.Config{}, nil, err
	}
	if cutoff != "" {
		cfg.Accounts.CutoffDate = cutoff
	}
	metrics.StartServer("")
	db, err := newsdb.Open(cfg.Storage.DBPath, newsdb.Options{
		AllowDuplicateRanks: cfg.Scoring.AllowDuplicateRanks,
	})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, db, nil
}

func init() {
	_ = godotenv.Load()
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "./newsforge.yaml", "config path")
	rootCmd.PersistentFlags().StringVar(&tier, "tier", "", "model tier: free, fast, or smart")
	articleCmd.Flags().StringVar(&date, "date", "", "article date (YYYY-MM-DD, default today)")
	articleCmd.Flags().BoolVar(&cited, "cited", false, "emit per-paragraph citations")
	runCmd.Flags().StringVar(&date, "date", "", "article date (YYYY-MM-DD, default today)")
	runCmd.Flags().BoolVar(&cited, "cited", false, "emit per-paragraph citations")
	collectCmd.Flags().StringVar(&cutoff, "cutoff", "", "collection cutoff date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&cutoff, "cutoff", "", "collection cutoff date (YYYY-MM-DD)")
	rootCmd.AddCommand(initCmd, collectCmd, scoreCmd, articleCmd, runCmd, podcastCmd)
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
