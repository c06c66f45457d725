package article

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"newsforge/internal/model"
)

func citedArticle() model.Article {
	return model.Article{
		ID:    "a1",
		Title: "Chain Daily",
		Content: model.ArticleContent{Paragraphs: []model.Paragraph{
			{Text: "The fork shipped on time.", SourceIDs: []string{"p1", "ghost"}},
			{Text: "Fees fell afterwards.", SourceIDs: []string{"p2", "p1"}},
		}},
		Summary:      "short",
		DailySummary: "big day",
		TopStories:   []string{"fork shipped"},
		CreatedAt:    time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC),
		Model:        "SMART (some/model)",
	}
}

func TestRenderMarkdownDropsUnknownCitations(t *testing.T) {
	out := RenderMarkdown(citedArticle(), testCandidates())
	if strings.Contains(out, "ghost") {
		t.Fatal("citation to an unknown ID must be silently omitted")
	}
	for _, want := range []string{
		"# Chain Daily",
		"## Daily Summary",
		"## Top Stories",
		"## Full Article",
		"The fork shipped on time.",
		"## Citations",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered output missing %q", want)
		}
	}
	// p1 is cited first, then reused in the second paragraph.
	if !strings.Contains(out, "[1] https://twitter.com/vitalik/status/p1") {
		t.Fatalf("expected numbered source link, got:\n%s", out)
	}
	if strings.Count(out, "1. @vitalik") != 1 {
		t.Fatal("expected a single consolidated index entry per post")
	}
}

func TestRenderMarkdownPlain(t *testing.T) {
	a := citedArticle()
	a.Content = model.ArticleContent{Plain: "Just one body."}
	out := RenderMarkdown(a, nil)
	if !strings.Contains(out, "Just one body.") {
		t.Fatal("plain body missing")
	}
	if strings.Contains(out, "## Citations") {
		t.Fatal("plain articles have no citation index")
	}
}

func TestWriteMarkdownTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteMarkdown(dir, citedArticle(), testCandidates())
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "article_20250510_120000.md" {
		t.Fatalf("unexpected filename: %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "# Chain Daily") {
		t.Fatal("file content missing title")
	}
}
