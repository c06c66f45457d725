package ingest

import (
	"context"
	"time"

	"newsforge/internal/logging"
	"newsforge/internal/metrics"
	"newsforge/internal/model"
	"newsforge/internal/xclient"
)

// Collect walks an account's timeline page by page until it reaches a
// post created before cutoff (calendar date comparison) or runs out of
// pages. A non-2xx provider response truncates collection, keeping
// whatever was accumulated. No dedup happens here; the store's natural
// key takes care of repeated runs.
func Collect(ctx context.Context, src xclient.TweetSource, username string, cutoff time.Time) ([]model.Post, error) {
	cutoffDay := dateOnly(cutoff)
	var posts []model.Post
	cursor := ""
	for {
		page, err := src.UserLastTweets(ctx, username, cursor)
		if err != nil {
			if xclient.IsStatus(err) {
				logging.Error("provider_error", map[string]any{"username": username, "error": err.Error()})
				metrics.CollectErrors.Inc()
				return posts, nil
			}
			return posts, err
		}
		for _, rec := range page.Tweets {
			createdAt, err := ParseCreatedAt(rec.CreatedAt)
			if err != nil {
				logging.Warn("unparseable_created_at", map[string]any{"username": username, "created_at": rec.CreatedAt})
				metrics.RecordsSkipped.Inc()
				continue
			}
			if dateOnly(createdAt).Before(cutoffDay) {
				logging.Info("cutoff_reached", map[string]any{"username": username, "post_date": createdAt.Format("2006-01-02")})
				return posts, nil
			}
			emitted, err := Normalize(rec)
			if err != nil {
				return posts, err
			}
			posts = append(posts, emitted...)
		}
		if len(page.Tweets) == xclient.PageSize && page.HasNextPage {
			cursor = page.NextCursor
			continue
		}
		return posts, nil
	}
}

// dateOnly drops the time of day, keeping the record's own calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
