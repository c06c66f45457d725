package ingest

import (
	"errors"
	"fmt"
	"time"

	"newsforge/internal/logging"
	"newsforge/internal/metrics"
	"newsforge/internal/model"
	"newsforge/internal/xclient"
)

// createdAtLayout is the provider's native timestamp format,
// e.g. "Fri May 09 09:55:55 +0000 2025".
const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// ErrNoAuthor means a record had no author handle, so its natural key
// cannot be formed.
var ErrNoAuthor = errors.New("record has no author handle")

// ParseCreatedAt parses the provider's native timestamp format.
func ParseCreatedAt(s string) (time.Time, error) {
	return time.Parse(createdAtLayout, s)
}

// Normalize converts one raw provider record into 1-2 Post entities.
// A retweet yields the original post followed by the retweet itself;
// every other case yields a single post. A record whose timestamp does
// not parse is skipped (nil, nil) with a logged warning. A record with
// no author handle is an error; an embedded original without one is
// dropped with a warning instead, since the record itself is usable.
func Normalize(raw xclient.RawTweet) ([]model.Post, error) {
	author := raw.Author.UserName
	if author == "" {
		return nil, fmt.Errorf("%w: created_at=%q", ErrNoAuthor, raw.CreatedAt)
	}
	createdAt, err := ParseCreatedAt(raw.CreatedAt)
	if err != nil {
		logging.Warn("unparseable_created_at", map[string]any{"author": author, "created_at": raw.CreatedAt})
		metrics.RecordsSkipped.Inc()
		return nil, nil
	}

	switch {
	case raw.RetweetedTweet != nil:
		orig := raw.RetweetedTweet
		if orig.Author.UserName == "" {
			// No handle means no natural key for the original; keep the
			// retweet and leave it unlinked.
			logging.Warn("retweeted_original_no_author", map[string]any{"author": author, "created_at": raw.CreatedAt})
			metrics.RecordsSkipped.Inc()
			retweet := buildPost(model.NewID(), raw, createdAt, model.KindRetweet, "")
			return []model.Post{retweet}, nil
		}
		origCreated, err := ParseCreatedAt(orig.CreatedAt)
		if err != nil {
			// Fall back to the retweet's own timestamp.
			origCreated = createdAt
		}
		original := buildPost(model.NewID(), *orig, origCreated, model.KindOriginal, "")
		// The provider truncates retweet text; accepted as-is.
		retweet := buildPost(model.NewID(), raw, createdAt, model.KindRetweet, original.ID)
		return []model.Post{original, retweet}, nil

	case raw.IsReply && raw.InReplyToID != "":
		// The original post's content is not in this record, so no
		// placeholder is fabricated and the link stays empty.
		reply := buildPost(model.NewID(), raw, createdAt, model.KindReply, "")
		return []model.Post{reply}, nil

	case raw.QuotedTweet != nil:
		// A fresh reference with no corresponding row: a dangling link,
		// allowed by the schema.
		quote := buildPost(model.NewID(), raw, createdAt, model.KindQuote, model.NewID())
		return []model.Post{quote}, nil

	default:
		post := buildPost(model.NewID(), raw, createdAt, model.KindOriginal, "")
		return []model.Post{post}, nil
	}
}

func buildPost(id string, raw xclient.RawTweet, createdAt time.Time, kind, linkedID string) model.Post {
	return model.Post{
		ID:            id,
		Author:        raw.Author.UserName,
		URL:           raw.URL,
		CreatedAt:     createdAt,
		Text:          raw.Text,
		Kind:          kind,
		LinkedPostID:  linkedID,
		RepostCount:   pickCounter(structured(raw).RetweetCount, raw.RetweetCount),
		ReplyCount:    pickCounter(structured(raw).ReplyCount, raw.ReplyCount),
		LikeCount:     pickCounter(structured(raw).LikeCount, raw.LikeCount),
		QuoteCount:    pickCounter(structured(raw).QuoteCount, raw.QuoteCount),
		ViewCount:     pickCounter(structured(raw).ImpressionCount, raw.ViewCount),
		BookmarkCount: raw.BookmarkCount,
	}
}

func structured(raw xclient.RawTweet) xclient.RawMetrics {
	if raw.PublicMetrics != nil {
		return *raw.PublicMetrics
	}
	return xclient.RawMetrics{}
}

// pickCounter prefers the structured metrics value when it is non-zero.
func pickCounter(structured, flat int) int {
	if structured != 0 {
		return structured
	}
	return flat
}
