package model

import (
	"time"

	"github.com/google/uuid"
)

// Post kinds as stored in the posts table.
const (
	KindOriginal = "original"
	KindRetweet  = "retweet"
	KindReply    = "reply"
	KindQuote    = "quote"
)

// Post is a single social-media message as stored internally.
// The (Author, CreatedAt) pair is the natural key for ingestion dedup;
// ID is a generated identifier, not a content hash.
type Post struct {
	ID            string
	Author        string
	URL           string
	CreatedAt     time.Time
	Text          string
	Kind          string
	LinkedPostID  string // post this retweets/quotes; empty when unresolvable
	RepostCount   int
	ReplyCount    int
	LikeCount     int
	QuoteCount    int
	ViewCount     int
	BookmarkCount int
}

// Rank is a model-produced newsworthiness score for one Post.
type Rank struct {
	ID      string
	PostID  string
	RunTime time.Time
	Reason  string
	Score   int
	Model   string
	Prompt  string
}

// HighScore is the minimum Rank score that qualifies a post for
// article generation.
const HighScore = 7

// Article is a generated composite summary over high-ranked posts.
type Article struct {
	ID           string
	Title        string
	Content      ArticleContent
	Summary      string
	DailySummary string
	TopStories   []string
	CreatedAt    time.Time
	Model        string
	Prompt       string
}

// ArticleContent is the tagged union of the two article body variants.
// Exactly one of Plain or Paragraphs is set.
type ArticleContent struct {
	Plain      string
	Paragraphs []Paragraph
}

// Cited reports whether the content carries per-paragraph citations.
func (c ArticleContent) Cited() bool { return c.Paragraphs != nil }

// Paragraph is one paragraph of a citation-linked article body together
// with the IDs of the source posts it draws from.
type Paragraph struct {
	Text      string   `json:"paragraph_text"`
	SourceIDs []string `json:"source_ids"`
}

// ArticlePlan is the structured output of the planning stage.
type ArticlePlan struct {
	DailySummary string   `json:"daily_summary"`
	TopStories   []string `json:"top_stories"`
	Structure    []string `json:"structure"`
}

// NewID returns a fresh generated identifier.
func NewID() string { return uuid.NewString() }
