package article

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"newsforge/internal/llm"
	"newsforge/internal/logging"
	"newsforge/internal/metrics"
	"newsforge/internal/model"
	"newsforge/internal/store/newsdb"
)

// ErrNoCandidates means no high-scoring ranks exist for the target date.
var ErrNoCandidates = errors.New("no high-scoring ranks found for article generation")

var (
	planPrompt    = template.Must(template.New("plan").Parse(planPromptTemplate))
	articlePrompt = template.Must(template.New("article").Parse(articlePromptTemplate))
)

// Candidate is one source post joined with its qualifying rank.
type Candidate struct {
	Post   model.Post
	Score  int
	Reason string
}

// SelectCandidates loads the top ranks for a calendar day (YYYY-MM-DD)
// and joins them to their posts, newest post first.
func SelectCandidates(ctx context.Context, db *newsdb.DB, day string, minScore, limit int) ([]Candidate, error) {
	ranks, err := db.TopRanksByDate(ctx, day, minScore, limit)
	if err != nil {
		return nil, err
	}
	if len(ranks) == 0 {
		return nil, fmt.Errorf("%w: date=%s", ErrNoCandidates, day)
	}
	byPost := make(map[string]model.Rank, len(ranks))
	ids := make([]string, 0, len(ranks))
	for _, r := range ranks {
		// Ranks arrive best first; keep the highest per post.
		if _, ok := byPost[r.PostID]; ok {
			continue
		}
		byPost[r.PostID] = r
		ids = append(ids, r.PostID)
	}
	posts, err := db.PostsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(posts))
	for _, p := range posts {
		r := byPost[p.ID]
		out = append(out, Candidate{Post: p, Score: r.Score, Reason: r.Reason})
	}
	return out, nil
}

// Generator runs the two-stage plan-then-write pipeline over a
// candidate set. It does not persist; callers store the result.
type Generator struct {
	Client  llm.Client
	ModelID string
	Display string
	// Cited switches the second stage to paragraph-level citations.
	Cited bool
	Retry llm.RetryPolicy
	Now   func() time.Time
}

func NewGenerator(client llm.Client, modelID, display string, cited bool) *Generator {
	return &Generator{
		Client:  client,
		ModelID: modelID,
		Display: display,
		Cited:   cited,
		Retry: llm.RetryPolicy{
			OnRetry: func(attempt int, delay time.Duration) {
				metrics.IncLLMRetry("article")
				logging.Warn("article_rate_limited", map[string]any{"attempt": attempt, "delay": delay.String()})
			},
		},
		Now: time.Now,
	}
}

// Plan runs the first stage: candidates in, structured plan out.
func (g *Generator) Plan(ctx context.Context, cands []Candidate) (model.ArticlePlan, error) {
	var sb strings.Builder
	err := planPrompt.Execute(&sb, struct{ Sources string }{Sources: formatSources(cands, g.Cited)})
	if err != nil {
		return model.ArticlePlan{}, fmt.Errorf("render plan prompt: %w", err)
	}
	metrics.LLMCalls.WithLabelValues("article").Inc()
	plan, err := llm.Retry(g.Retry, func() (model.ArticlePlan, error) {
		var p model.ArticlePlan
		err := llm.CompleteInto(ctx, g.Client, llm.Request{
			Model:  g.ModelID,
			Prompt: sb.String(),
			Schema: llm.Schema{Name: "article_plan", Definition: planSchema},
		}, &p)
		return p, err
	})
	if err != nil {
		return model.ArticlePlan{}, fmt.Errorf("plan article: %w", err)
	}
	logging.Info("article_planned", map[string]any{"daily_summary": plan.DailySummary, "stories": len(plan.TopStories)})
	return plan, nil
}

// GenerateFromPlan runs the second stage. The prompt is built from the
// plan's fields plus the same sources block.
func (g *Generator) GenerateFromPlan(ctx context.Context, plan model.ArticlePlan, cands []Candidate) (model.Article, error) {
	var sb strings.Builder
	err := articlePrompt.Execute(&sb, struct {
		Sources      string
		DailySummary string
		TopStories   []string
		Structure    []string
	}{
		Sources:      formatSources(cands, g.Cited),
		DailySummary: plan.DailySummary,
		TopStories:   plan.TopStories,
		Structure:    plan.Structure,
	})
	if err != nil {
		return model.Article{}, fmt.Errorf("render article prompt: %w", err)
	}
	prompt := sb.String()
	if g.Cited {
		prompt += citedExtra
	}

	metrics.LLMCalls.WithLabelValues("article").Inc()
	var content model.ArticleContent
	var title, summary, daily string
	var stories []string
	if g.Cited {
		type llmCited struct {
			Title        string            `json:"title"`
			Content      []model.Paragraph `json:"content"`
			Summary      string            `json:"summary"`
			DailySummary string            `json:"daily_summary"`
			TopStories   []string          `json:"top_stories"`
		}
		out, err := llm.Retry(g.Retry, func() (llmCited, error) {
			var a llmCited
			err := llm.CompleteInto(ctx, g.Client, llm.Request{
				Model:  g.ModelID,
				Prompt: prompt,
				Schema: llm.Schema{Name: "cited_article", Definition: citedArticleSchema},
			}, &a)
			return a, err
		})
		if err != nil {
			return model.Article{}, fmt.Errorf("generate article: %w", err)
		}
		if out.Content == nil {
			out.Content = []model.Paragraph{}
		}
		content = model.ArticleContent{Paragraphs: out.Content}
		title, summary, daily, stories = out.Title, out.Summary, out.DailySummary, out.TopStories
	} else {
		type llmArticle struct {
			Title        string   `json:"title"`
			Content      string   `json:"content"`
			Summary      string   `json:"summary"`
			DailySummary string   `json:"daily_summary"`
			TopStories   []string `json:"top_stories"`
		}
		out, err := llm.Retry(g.Retry, func() (llmArticle, error) {
			var a llmArticle
			err := llm.CompleteInto(ctx, g.Client, llm.Request{
				Model:  g.ModelID,
				Prompt: prompt,
				Schema: llm.Schema{Name: "article", Definition: articleSchema},
			}, &a)
			return a, err
		})
		if err != nil {
			return model.Article{}, fmt.Errorf("generate article: %w", err)
		}
		content = model.ArticleContent{Plain: out.Content}
		title, summary, daily, stories = out.Title, out.Summary, out.DailySummary, out.TopStories
	}

	return model.Article{
		ID:           model.NewID(),
		Title:        title,
		Content:      content,
		Summary:      summary,
		DailySummary: daily,
		TopStories:   stories,
		CreatedAt:    g.Now(),
		Model:        g.Display,
		Prompt:       prompt,
	}, nil
}

// Generate runs both stages sequentially.
func (g *Generator) Generate(ctx context.Context, cands []Candidate) (model.Article, error) {
	plan, err := g.Plan(ctx, cands)
	if err != nil {
		return model.Article{}, err
	}
	return g.GenerateFromPlan(ctx, plan, cands)
}

// formatSources renders the candidate posts into the prompt's sources
// block. The cited variant includes the post ID and score rationale.
func formatSources(cands []Candidate, cited bool) string {
	blocks := make([]string, 0, len(cands))
	for _, c := range cands {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Tweet: %s\n", c.Post.Text)
		if cited {
			fmt.Fprintf(&sb, "ID: %s\n", c.Post.ID)
		}
		fmt.Fprintf(&sb, "Link: %s\n", postLink(c.Post))
		fmt.Fprintf(&sb, "Score: %d\n", c.Score)
		fmt.Fprintf(&sb, "Reason: %s\n", c.Reason)
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n")
}

func postLink(p model.Post) string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("https://twitter.com/%s/status/%s", p.Author, p.ID)
}
