package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsforge/internal/article"
	"newsforge/internal/config"
	"newsforge/internal/ingest"
	"newsforge/internal/llm"
	"newsforge/internal/logging"
	"newsforge/internal/metrics"
	"newsforge/internal/model"
	"newsforge/internal/rank"
	"newsforge/internal/store/newsdb"
	"newsforge/internal/xclient"
)

// ErrNotImplemented marks stages that exist on the command surface but
// have no implementation yet.
var ErrNotImplemented = errors.New("podcast generation is not implemented")

// RunCollect walks every configured account up to the cutoff date and
// hands the normalized posts to the store. Safe to re-run: the store's
// natural key collapses duplicates.
func RunCollect(ctx context.Context, db *newsdb.DB, src xclient.TweetSource, cfg config.Config) error {
	start := time.Now()
	metrics.CollectRuns.Inc()
	cutoff, err := time.Parse("2006-01-02", cfg.Accounts.CutoffDate)
	if err != nil {
		return fmt.Errorf("bad cutoff date %q: %w", cfg.Accounts.CutoffDate, err)
	}
	for _, username := range cfg.Accounts.Usernames {
		posts, err := ingest.Collect(ctx, src, username, cutoff)
		if err != nil {
			metrics.CollectErrors.Inc()
			return fmt.Errorf("collect %s: %w", username, err)
		}
		var saved, deduped int
		for _, p := range posts {
			metrics.PostsIngested.Inc()
			id, err := db.SavePost(ctx, p)
			if err != nil {
				return fmt.Errorf("save post for %s: %w", username, err)
			}
			if id != p.ID {
				metrics.PostsDeduped.Inc()
				deduped++
				continue
			}
			saved++
		}
		logging.Info("collected", map[string]any{"username": username, "fetched": len(posts), "saved": saved, "deduped": deduped})
	}
	metrics.ObserveStageDuration("collect", start)
	return nil
}

// RunScore scores every post that has no rank yet, then persists the
// batch. Scoring collects all ranks before the first write.
func RunScore(ctx context.Context, db *newsdb.DB, client llm.Client, cfg config.Config, tier string) error {
	start := time.Now()
	tier, modelID, err := resolveTier(cfg, tier)
	if err != nil {
		return err
	}
	posts, err := db.UnrankedPosts(ctx)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		return errors.New("no unscored posts found")
	}
	scorer := rank.NewScorer(client, modelID, rank.DisplayName(tier, modelID))
	scored := make([]model.Rank, 0, len(posts))
	for _, p := range posts {
		r, err := scorer.Score(ctx, p)
		if err != nil {
			return fmt.Errorf("score %s: %w", p.ID, err)
		}
		scored = append(scored, r)
	}
	for _, r := range scored {
		if _, err := db.SaveRank(ctx, r); err != nil {
			return err
		}
	}
	logging.Info("scored", map[string]any{"posts": len(posts), "tier": tier})
	metrics.ObserveStageDuration("score", start)
	return nil
}

// RunArticle selects the day's high-scoring posts, runs the two-stage
// generation, writes the markdown document, and stores the article.
// Returns the rendered document path.
func RunArticle(ctx context.Context, db *newsdb.DB, client llm.Client, cfg config.Config, tier, day string) (string, error) {
	start := time.Now()
	tier, modelID, err := resolveTier(cfg, tier)
	if err != nil {
		return "", err
	}
	if day == "" {
		day = time.Now().UTC().Format("2006-01-02")
	}
	cands, err := article.SelectCandidates(ctx, db, day, cfg.Article.MinScore, cfg.Article.MaxSources)
	if err != nil {
		return "", err
	}
	gen := article.NewGenerator(client, modelID, rank.DisplayName(tier, modelID), cfg.Article.Cited)
	a, err := gen.Generate(ctx, cands)
	if err != nil {
		return "", err
	}
	path, err := article.WriteMarkdown(cfg.Article.OutputDir, a, cands)
	if err != nil {
		return "", err
	}
	if _, err := db.SaveArticle(ctx, a); err != nil {
		return "", err
	}
	logging.Info("article_done", map[string]any{"date": day, "sources": len(cands), "path": path})
	metrics.ObserveStageDuration("article", start)
	return path, nil
}

// RunAll chains collect, score, and article for the cutoff date.
func RunAll(ctx context.Context, db *newsdb.DB, src xclient.TweetSource, client llm.Client, cfg config.Config, tier, day string) (string, error) {
	if err := RunCollect(ctx, db, src, cfg); err != nil {
		return "", err
	}
	if err := RunScore(ctx, db, client, cfg, tier); err != nil {
		return "", err
	}
	return RunArticle(ctx, db, client, cfg, tier, day)
}

// RunPodcast is the audio stage placeholder. It fails explicitly rather
// than silently no-oping.
func RunPodcast() error { return ErrNotImplemented }

func resolveTier(cfg config.Config, tier string) (string, string, error) {
	if tier == "" {
		tier = cfg.LLM.DefaultTier
	}
	modelID, err := cfg.ModelForTier(tier)
	if err != nil {
		return "", "", err
	}
	return tier, modelID, nil
}
