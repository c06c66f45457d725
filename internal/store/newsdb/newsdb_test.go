package newsdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsforge/internal/model"
)

func openTestDB(t *testing.T, opts Options) *DB {
	t.Helper()
	db, err := Open(":memory:", opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testPost(author string, at time.Time) model.Post {
	return model.Post{
		ID:        model.NewID(),
		Author:    author,
		CreatedAt: at,
		Text:      "rollups are eating the world",
		Kind:      model.KindOriginal,
		LikeCount: 12,
	}
}

func TestSavePostIdempotent(t *testing.T) {
	db := openTestDB(t, Options{AllowDuplicateRanks: true})
	ctx := context.Background()
	at := time.Date(2025, 5, 9, 9, 55, 55, 0, time.UTC)

	p1 := testPost("vitalik", at)
	p2 := testPost("vitalik", at)
	p2.Text = "a paraphrased duplicate"

	id1, err := db.SavePost(ctx, p1)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := db.SavePost(ctx, p2)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("expected same id for same natural key, got %s and %s", id1, id2)
	}
	n, err := db.CountPosts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 row, got %d", n)
	}
	// First write wins.
	posts, err := db.PostsByAuthor(ctx, "vitalik", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 || posts[0].Text != p1.Text {
		t.Fatalf("expected first-written text, got %+v", posts)
	}
}

func TestSavePostRequiresAuthor(t *testing.T) {
	db := openTestDB(t, Options{})
	if _, err := db.SavePost(context.Background(), model.Post{CreatedAt: time.Now()}); err == nil {
		t.Fatal("expected error for post without author")
	}
}

func TestSaveRankRejectsMissingPost(t *testing.T) {
	db := openTestDB(t, Options{AllowDuplicateRanks: true})
	ctx := context.Background()
	_, err := db.SaveRank(ctx, model.Rank{
		PostID:  "nope",
		RunTime: time.Now(),
		Reason:  "irrelevant",
		Score:   3,
	})
	if !errors.Is(err, ErrMissingPost) {
		t.Fatalf("expected ErrMissingPost, got %v", err)
	}
}

func TestSaveRankDuplicatePolicy(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 5, 9, 10, 0, 0, 0, time.UTC)

	t.Run("allowed", func(t *testing.T) {
		db := openTestDB(t, Options{AllowDuplicateRanks: true})
		postID, err := db.SavePost(ctx, testPost("vitalik", at))
		if err != nil {
			t.Fatal(err)
		}
		r := model.Rank{PostID: postID, RunTime: at, Reason: "news", Score: 8}
		id1, err := db.SaveRank(ctx, r)
		if err != nil {
			t.Fatal(err)
		}
		r.ID = ""
		id2, err := db.SaveRank(ctx, r)
		if err != nil {
			t.Fatal(err)
		}
		if id1 == id2 {
			t.Fatal("expected a second rank row when duplicates are allowed")
		}
	})

	t.Run("deduped", func(t *testing.T) {
		db := openTestDB(t, Options{AllowDuplicateRanks: false})
		postID, err := db.SavePost(ctx, testPost("vitalik", at))
		if err != nil {
			t.Fatal(err)
		}
		r := model.Rank{PostID: postID, RunTime: at, Reason: "news", Score: 8}
		id1, err := db.SaveRank(ctx, r)
		if err != nil {
			t.Fatal(err)
		}
		r.ID = ""
		id2, err := db.SaveRank(ctx, r)
		if err != nil {
			t.Fatal(err)
		}
		if id1 != id2 {
			t.Fatalf("expected rank dedup by post, got %s and %s", id1, id2)
		}
	})
}

func TestTopRanksByDateFiltersAndCaps(t *testing.T) {
	db := openTestDB(t, Options{AllowDuplicateRanks: true})
	ctx := context.Background()
	day := time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC)

	scores := []int{9, 8, 6}
	for i, s := range scores {
		postID, err := db.SavePost(ctx, testPost("vitalik", day.Add(time.Duration(i)*time.Hour)))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := db.SaveRank(ctx, model.Rank{PostID: postID, RunTime: day, Reason: "r", Score: s}); err != nil {
			t.Fatal(err)
		}
	}
	// A rank from another day must not leak in.
	otherID, err := db.SavePost(ctx, testPost("vitalik", day.AddDate(0, 0, -3)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.SaveRank(ctx, model.Rank{PostID: otherID, RunTime: day, Reason: "r", Score: 10}); err != nil {
		t.Fatal(err)
	}

	ranks, err := db.TopRanksByDate(ctx, "2025-05-09", model.HighScore, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranks) != 2 {
		t.Fatalf("expected 2 qualifying ranks, got %d", len(ranks))
	}
	if ranks[0].Score != 9 || ranks[1].Score != 8 {
		t.Fatalf("expected descending scores 9,8, got %d,%d", ranks[0].Score, ranks[1].Score)
	}
}

func TestPostsByIDsOrdering(t *testing.T) {
	db := openTestDB(t, Options{})
	ctx := context.Background()
	base := time.Date(2025, 5, 9, 8, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := db.SavePost(ctx, testPost("vitalik", base.Add(time.Duration(i)*time.Minute)))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	posts, err := db.PostsByIDs(ctx, ids[:2])
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if !posts[0].CreatedAt.After(posts[1].CreatedAt) {
		t.Fatal("expected newest-first ordering")
	}
}

func TestUnrankedPosts(t *testing.T) {
	db := openTestDB(t, Options{AllowDuplicateRanks: true})
	ctx := context.Background()
	at := time.Date(2025, 5, 9, 8, 0, 0, 0, time.UTC)
	ranked, err := db.SavePost(ctx, testPost("vitalik", at))
	if err != nil {
		t.Fatal(err)
	}
	unranked, err := db.SavePost(ctx, testPost("vitalik", at.Add(time.Hour)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.SaveRank(ctx, model.Rank{PostID: ranked, RunTime: at, Reason: "r", Score: 5}); err != nil {
		t.Fatal(err)
	}
	posts, err := db.UnrankedPosts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 || posts[0].ID != unranked {
		t.Fatalf("expected only the unranked post, got %+v", posts)
	}
}

func TestSaveArticleRoundTripsExistence(t *testing.T) {
	db := openTestDB(t, Options{})
	ctx := context.Background()
	a := model.Article{
		Title:        "Daily Chain Report",
		Content:      model.ArticleContent{Plain: "body"},
		Summary:      "short",
		DailySummary: "the day in one breath",
		TopStories:   []string{"story one", "story two"},
		CreatedAt:    time.Now().UTC(),
		Model:        "FREE (some/model)",
	}
	id, err := db.SaveArticle(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := db.ArticleExists(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected article to exist after save")
	}
	a.ID = id
	again, err := db.SaveArticle(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if again != id {
		t.Fatal("expected idempotent save by id")
	}
}
