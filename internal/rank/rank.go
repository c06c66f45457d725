package rank

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"newsforge/internal/llm"
	"newsforge/internal/logging"
	"newsforge/internal/metrics"
	"newsforge/internal/model"
)

const dateFormat = "January 2, 2006"

var prompt = template.Must(template.New("rank").Parse(promptTemplate))

// Scorer turns one post into one Rank via a structured model call.
// It does not persist: callers batch the results into the store.
type Scorer struct {
	Client  llm.Client
	ModelID string
	// Display is the human-readable model name stamped into ranks,
	// e.g. "FREE (deepseek/deepseek-chat-v3-0324:free)".
	Display string
	Retry   llm.RetryPolicy
	Now     func() time.Time
}

func NewScorer(client llm.Client, modelID, display string) *Scorer {
	return &Scorer{
		Client:  client,
		ModelID: modelID,
		Display: display,
		Retry: llm.RetryPolicy{
			OnRetry: func(attempt int, delay time.Duration) {
				metrics.IncLLMRetry("score")
				logging.Warn("score_rate_limited", map[string]any{"attempt": attempt, "delay": delay.String()})
			},
		},
		Now: time.Now,
	}
}

type promptData struct {
	Post      string
	Today     string
	Tomorrow  string
	NextWeek  string
	NextMonth string
	NextYear  string
}

// Score renders the prompt for a post, invokes the model with the
// {reason, score} output shape, and wraps the result into a Rank.
func (s *Scorer) Score(ctx context.Context, post model.Post) (model.Rank, error) {
	now := s.Now()
	data := promptData{
		Post:      formatPostInfo(post),
		Today:     now.Format(dateFormat),
		Tomorrow:  now.AddDate(0, 0, 1).Format(dateFormat),
		NextWeek:  now.AddDate(0, 0, 7).Format(dateFormat),
		NextMonth: now.AddDate(0, 0, 30).Format(dateFormat),
		NextYear:  now.AddDate(0, 0, 365).Format(dateFormat),
	}
	var sb strings.Builder
	if err := prompt.Execute(&sb, data); err != nil {
		return model.Rank{}, fmt.Errorf("render rank prompt: %w", err)
	}
	rendered := sb.String()

	type llmRank struct {
		Reason string `json:"reason"`
		Score  int    `json:"score"`
	}
	metrics.LLMCalls.WithLabelValues("score").Inc()
	out, err := llm.Retry(s.Retry, func() (llmRank, error) {
		var r llmRank
		err := llm.CompleteInto(ctx, s.Client, llm.Request{
			Model:  s.ModelID,
			Prompt: rendered,
			Schema: llm.Schema{Name: "rank", Definition: rankSchema},
		}, &r)
		return r, err
	})
	if err != nil {
		return model.Rank{}, fmt.Errorf("score post %s: %w", post.ID, err)
	}
	return model.Rank{
		ID:      model.NewID(),
		PostID:  post.ID,
		RunTime: now,
		Reason:  out.Reason,
		Score:   out.Score,
		Model:   s.Display,
		Prompt:  rendered,
	}, nil
}

func formatPostInfo(p model.Post) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tweet text: %s\n", p.Text)
	fmt.Fprintf(&sb, "Username: %s\n", p.Author)
	fmt.Fprintf(&sb, "Created at: %s\n", p.CreatedAt.Format(time.RFC3339))
	return sb.String()
}

// DisplayName renders a tier and model identifier the way ranks and
// articles record them.
func DisplayName(tier, modelID string) string {
	return fmt.Sprintf("%s (%s)", strings.ToUpper(tier), modelID)
}
