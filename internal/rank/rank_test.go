package rank

import (
	"context"
	"strings"
	"testing"
	"time"

	"newsforge/internal/llm"
	"newsforge/internal/model"
)

type stubClient struct {
	replies []string
	errs    []error
	prompts []string
}

func (s *stubClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	i := len(s.prompts)
	s.prompts = append(s.prompts, req.Prompt)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return s.replies[len(s.replies)-1], nil
}

func fixedNow() time.Time { return time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC) }

func testScorer(c llm.Client) *Scorer {
	s := NewScorer(c, "some/model", DisplayName("free", "some/model"))
	s.Now = fixedNow
	s.Retry.Sleep = func(time.Duration) {}
	return s
}

func TestScoreBuildsRankFromStructuredOutput(t *testing.T) {
	stub := &stubClient{replies: []string{`{"reason":"protocol launch","score":8}`}}
	s := testScorer(stub)
	post := model.Post{
		ID:        "p1",
		Author:    "vitalik",
		CreatedAt: time.Date(2025, 5, 9, 9, 55, 55, 0, time.UTC),
		Text:      "the fork shipped",
	}
	r, err := s.Score(context.Background(), post)
	if err != nil {
		t.Fatal(err)
	}
	if r.PostID != "p1" || r.Score != 8 || r.Reason != "protocol launch" {
		t.Fatalf("unexpected rank: %+v", r)
	}
	if r.Model != "FREE (some/model)" {
		t.Fatalf("model display name: %q", r.Model)
	}
	if !r.RunTime.Equal(fixedNow()) {
		t.Fatalf("run time: %v", r.RunTime)
	}
	if r.Prompt == "" || r.Prompt != stub.prompts[0] {
		t.Fatal("rank must record the exact prompt sent")
	}
}

func TestScorePromptAnchorsDates(t *testing.T) {
	stub := &stubClient{replies: []string{`{"reason":"x","score":1}`}}
	s := testScorer(stub)
	if _, err := s.Score(context.Background(), model.Post{ID: "p", Author: "a", Text: "t", CreatedAt: fixedNow()}); err != nil {
		t.Fatal(err)
	}
	prompt := stub.prompts[0]
	for _, want := range []string{
		"May 10, 2025",  // today
		"May 11, 2025",  // tomorrow
		"May 17, 2025",  // next week
		"June 9, 2025",  // +30 days
		"May 10, 2026",  // +365 days
		"Tweet text: t",
		"Username: a",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestScoreRetriesRateLimitsThenSucceeds(t *testing.T) {
	rl := &llm.RateLimitError{Message: "slow"}
	stub := &stubClient{
		errs:    []error{rl, rl, rl, nil},
		replies: []string{"", "", "", `{"reason":"ok","score":7}`},
	}
	var slept []time.Duration
	s := testScorer(stub)
	s.Retry.Sleep = func(d time.Duration) { slept = append(slept, d) }

	r, err := s.Score(context.Background(), model.Post{ID: "p", Author: "a", Text: "t", CreatedAt: fixedNow()})
	if err != nil {
		t.Fatal(err)
	}
	if r.Score != 7 {
		t.Fatalf("unexpected rank: %+v", r)
	}
	if len(stub.prompts) != 4 {
		t.Fatalf("expected 4 invocations, got %d", len(stub.prompts))
	}
	var total time.Duration
	for _, d := range slept {
		total += d
	}
	if total != 18*time.Second {
		t.Fatalf("expected 3+6+9s simulated delay, got %v", total)
	}
}

func TestScoreExhaustedRetriesReRaise(t *testing.T) {
	rl := &llm.RateLimitError{Message: "always"}
	stub := &stubClient{errs: []error{rl, rl, rl, rl, rl}, replies: []string{""}}
	s := testScorer(stub)
	_, err := s.Score(context.Background(), model.Post{ID: "p", Author: "a", Text: "t", CreatedAt: fixedNow()})
	if !llm.IsRateLimit(err) {
		t.Fatalf("expected rate-limit failure after exhaustion, got %v", err)
	}
	if len(stub.prompts) != 5 {
		t.Fatalf("expected 1+4 attempts, got %d", len(stub.prompts))
	}
}
