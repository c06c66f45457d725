package article

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"newsforge/internal/logging"
	"newsforge/internal/metrics"
	"newsforge/internal/model"
	"newsforge/internal/util"
)

// RenderMarkdown lays the article out as a markdown document. For cited
// content each paragraph is followed by its numbered source list and a
// consolidated citation index closes the document; citations to IDs
// outside the candidate set are silently dropped.
func RenderMarkdown(a model.Article, cands []Candidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", a.Title)
	fmt.Fprintf(&sb, "*Generated on: %s*\n\n", a.CreatedAt.Format("2006-01-02 15:04:05"))
	if a.Model != "" {
		fmt.Fprintf(&sb, "*Model: %s*\n\n", a.Model)
	}
	fmt.Fprintf(&sb, "## Daily Summary\n%s\n\n", a.DailySummary)
	sb.WriteString("## Top Stories\n")
	for _, story := range a.TopStories {
		fmt.Fprintf(&sb, "- %s\n", story)
	}
	fmt.Fprintf(&sb, "\n## Article Summary\n%s\n\n", a.Summary)
	sb.WriteString("## Full Article\n")

	if !a.Content.Cited() {
		sb.WriteString(a.Content.Plain)
		sb.WriteString("\n")
		return sb.String()
	}

	known := make(map[string]Candidate, len(cands))
	for _, c := range cands {
		known[c.Post.ID] = c
	}
	// Citation numbers are assigned in order of first use.
	numbers := map[string]int{}
	var order []string
	cite := func(id string) int {
		if n, ok := numbers[id]; ok {
			return n
		}
		n := len(order) + 1
		numbers[id] = n
		order = append(order, id)
		return n
	}

	for _, para := range a.Content.Paragraphs {
		sb.WriteString(para.Text)
		sb.WriteString("\n")
		var refs []string
		for _, id := range para.SourceIDs {
			c, ok := known[id]
			if !ok {
				continue
			}
			refs = append(refs, fmt.Sprintf("[%d] %s", cite(id), postLink(c.Post)))
		}
		if len(refs) > 0 {
			fmt.Fprintf(&sb, "\nSources: %s\n", strings.Join(refs, " "))
		}
		sb.WriteString("\n")
	}

	if len(order) > 0 {
		sb.WriteString("## Citations\n")
		for _, id := range order {
			c := known[id]
			excerpt := util.TruncateRunes(util.NormalizeWhitespace(c.Post.Text), 80)
			fmt.Fprintf(&sb, "%d. @%s: %s (%s)\n", numbers[id], c.Post.Author, excerpt, postLink(c.Post))
		}
	}
	return sb.String()
}

// WriteMarkdown renders the article and writes it to a timestamped file
// under dir, returning the path.
func WriteMarkdown(dir string, a model.Article, cands []Candidate) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("article_%s.md", a.CreatedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(RenderMarkdown(a, cands)), 0o644); err != nil {
		return "", err
	}
	metrics.ArticlesWritten.Inc()
	logging.Info("article_written", map[string]any{"path": path})
	return path, nil
}
