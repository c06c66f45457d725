package newsdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"newsforge/internal/model"
)

// ErrMissingPost is returned when a rank references a post that is not
// in the store.
var ErrMissingPost = errors.New("rank references missing post")

// Options controls store behavior that the product has not settled yet.
type Options struct {
	// AllowDuplicateRanks keeps the original behavior of accumulating a
	// new rank row per scoring run. When false, post_id acts as the
	// rank natural key and SaveRank returns the existing row's ID.
	AllowDuplicateRanks bool
}

// DB wraps the SQLite database holding posts, ranks, and articles.
type DB struct {
	sql  *sql.DB
	opts Options
}

func Open(path string, opts Options) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;`); err != nil {
		return nil, err
	}
	db := &DB{sql: d, opts: opts}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	// linked_post_id is intentionally not FK-enforced: quote posts carry
	// a reference with no corresponding row.
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS posts (
	  id TEXT PRIMARY KEY,
	  author TEXT NOT NULL,
	  url TEXT,
	  created_at TEXT NOT NULL,
	  text TEXT NOT NULL,
	  kind TEXT NOT NULL,
	  linked_post_id TEXT,
	  repost_count INTEGER NOT NULL DEFAULT 0,
	  reply_count INTEGER NOT NULL DEFAULT 0,
	  like_count INTEGER NOT NULL DEFAULT 0,
	  quote_count INTEGER NOT NULL DEFAULT 0,
	  view_count INTEGER NOT NULL DEFAULT 0,
	  bookmark_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_posts_author_created ON posts(author, created_at);
	CREATE TABLE IF NOT EXISTS ranks (
	  id TEXT PRIMARY KEY,
	  post_id TEXT NOT NULL REFERENCES posts(id),
	  run_time TEXT NOT NULL,
	  reason TEXT NOT NULL,
	  score INTEGER NOT NULL,
	  model TEXT,
	  prompt TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_ranks_post ON ranks(post_id);
	CREATE TABLE IF NOT EXISTS articles (
	  id TEXT PRIMARY KEY,
	  title TEXT NOT NULL,
	  content TEXT NOT NULL,
	  summary TEXT NOT NULL,
	  daily_summary TEXT NOT NULL,
	  top_stories TEXT NOT NULL,
	  created_at TEXT NOT NULL,
	  model TEXT,
	  prompt TEXT
	);
	`)
	return err
}

// fmtTime is the canonical stored timestamp form. Natural-key equality
// depends on every write using it.
func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

// PostExists reports whether a post with the (author, createdAt) natural
// key is already stored.
func (d *DB) PostExists(ctx context.Context, author string, createdAt time.Time) (bool, error) {
	id, err := d.postIDByKey(ctx, author, createdAt)
	if err != nil {
		return false, err
	}
	return id != "", nil
}

func (d *DB) postIDByKey(ctx context.Context, author string, createdAt time.Time) (string, error) {
	q, args, err := sq.Select("id").From("posts").
		Where(sq.Eq{"author": author, "created_at": fmtTime(createdAt)}).
		Limit(1).ToSql()
	if err != nil {
		return "", err
	}
	var id string
	err = d.sql.QueryRowContext(ctx, q, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// SavePost stores a post unless its (author, created_at) natural key is
// already present; either way it returns the stored row's ID.
// First write wins.
func (d *DB) SavePost(ctx context.Context, p model.Post) (string, error) {
	if p.Author == "" {
		return "", errors.New("post has no author")
	}
	existing, err := d.postIDByKey(ctx, p.Author, p.CreatedAt)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}
	if p.ID == "" {
		p.ID = model.NewID()
	}
	q, args, err := sq.Insert("posts").
		Columns("id", "author", "url", "created_at", "text", "kind", "linked_post_id",
			"repost_count", "reply_count", "like_count", "quote_count", "view_count", "bookmark_count").
		Values(p.ID, p.Author, nullable(p.URL), fmtTime(p.CreatedAt), p.Text, p.Kind, nullable(p.LinkedPostID),
			p.RepostCount, p.ReplyCount, p.LikeCount, p.QuoteCount, p.ViewCount, p.BookmarkCount).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := d.sql.ExecContext(ctx, q, args...); err != nil {
		return "", err
	}
	return p.ID, nil
}

// RankExists reports whether a rank row with the given ID is stored.
func (d *DB) RankExists(ctx context.Context, id string) (bool, error) {
	return d.idExists(ctx, "ranks", id)
}

// SaveRank stores a rank. The referenced post must exist. Depending on
// Options.AllowDuplicateRanks the post_id may act as a natural key.
func (d *DB) SaveRank(ctx context.Context, r model.Rank) (string, error) {
	if r.ID == "" {
		r.ID = model.NewID()
	}
	if ok, err := d.RankExists(ctx, r.ID); err != nil {
		return "", err
	} else if ok {
		return r.ID, nil
	}
	if !d.opts.AllowDuplicateRanks {
		q, args, err := sq.Select("id").From("ranks").Where(sq.Eq{"post_id": r.PostID}).Limit(1).ToSql()
		if err != nil {
			return "", err
		}
		var id string
		err = d.sql.QueryRowContext(ctx, q, args...).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
	}
	if ok, err := d.idExists(ctx, "posts", r.PostID); err != nil {
		return "", err
	} else if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingPost, r.PostID)
	}
	q, args, err := sq.Insert("ranks").
		Columns("id", "post_id", "run_time", "reason", "score", "model", "prompt").
		Values(r.ID, r.PostID, fmtTime(r.RunTime), r.Reason, r.Score, nullable(r.Model), nullable(r.Prompt)).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := d.sql.ExecContext(ctx, q, args...); err != nil {
		return "", err
	}
	return r.ID, nil
}

// ArticleExists reports whether an article row with the given ID is stored.
func (d *DB) ArticleExists(ctx context.Context, id string) (bool, error) {
	return d.idExists(ctx, "articles", id)
}

// SaveArticle stores an article keyed by its generated ID.
func (d *DB) SaveArticle(ctx context.Context, a model.Article) (string, error) {
	if a.ID == "" {
		a.ID = model.NewID()
	}
	if ok, err := d.ArticleExists(ctx, a.ID); err != nil {
		return "", err
	} else if ok {
		return a.ID, nil
	}
	content, err := encodeContent(a.Content)
	if err != nil {
		return "", err
	}
	stories, err := json.Marshal(a.TopStories)
	if err != nil {
		return "", err
	}
	q, args, err := sq.Insert("articles").
		Columns("id", "title", "content", "summary", "daily_summary", "top_stories", "created_at", "model", "prompt").
		Values(a.ID, a.Title, content, a.Summary, a.DailySummary, string(stories), fmtTime(a.CreatedAt), nullable(a.Model), nullable(a.Prompt)).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := d.sql.ExecContext(ctx, q, args...); err != nil {
		return "", err
	}
	return a.ID, nil
}

// PostsByAuthor returns up to limit posts by an author, newest first.
func (d *DB) PostsByAuthor(ctx context.Context, author string, limit int) ([]model.Post, error) {
	b := sq.Select(postColumns...).From("posts").
		Where(sq.Eq{"author": author}).
		OrderBy("created_at DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return d.queryPosts(ctx, b)
}

// PostsByIDs returns the posts in the ID set, newest first.
func (d *DB) PostsByIDs(ctx context.Context, ids []string) ([]model.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b := sq.Select(postColumns...).From("posts").
		Where(sq.Eq{"id": ids}).
		OrderBy("created_at DESC")
	return d.queryPosts(ctx, b)
}

// UnrankedPosts returns posts that have no rank row yet, oldest first, so
// re-running the score stage only touches what is missing.
func (d *DB) UnrankedPosts(ctx context.Context) ([]model.Post, error) {
	b := sq.Select(prefixed("p", postColumns)...).From("posts p").
		LeftJoin("ranks r ON r.post_id = p.id").
		Where("r.id IS NULL").
		OrderBy("p.created_at ASC")
	return d.queryPosts(ctx, b)
}

// TopRanksByDate returns ranks whose post was created on the given
// calendar day (YYYY-MM-DD) with score >= minScore, best first, capped
// at limit.
func (d *DB) TopRanksByDate(ctx context.Context, day string, minScore, limit int) ([]model.Rank, error) {
	b := sq.Select("r.id", "r.post_id", "r.run_time", "r.reason", "r.score", "r.model", "r.prompt").
		From("ranks r").
		Join("posts p ON p.id = r.post_id").
		Where(sq.Expr("date(p.created_at) = ?", day)).
		Where(sq.GtOrEq{"r.score": minScore}).
		OrderBy("r.score DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Rank
	for rows.Next() {
		r, err := scanRank(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountPosts returns the number of stored posts.
func (d *DB) CountPosts(ctx context.Context) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	return n, err
}

// --- row mapping ---

var postColumns = []string{
	"id", "author", "url", "created_at", "text", "kind", "linked_post_id",
	"repost_count", "reply_count", "like_count", "quote_count", "view_count", "bookmark_count",
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

func (d *DB) queryPosts(ctx context.Context, b sq.SelectBuilder) ([]model.Post, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPost(rows *sql.Rows) (model.Post, error) {
	var p model.Post
	var url, linked sql.NullString
	var created string
	if err := rows.Scan(&p.ID, &p.Author, &url, &created, &p.Text, &p.Kind, &linked,
		&p.RepostCount, &p.ReplyCount, &p.LikeCount, &p.QuoteCount, &p.ViewCount, &p.BookmarkCount); err != nil {
		return p, fmt.Errorf("scan post: %w", err)
	}
	ts, err := parseTime(created)
	if err != nil {
		return p, fmt.Errorf("post %s created_at: %w", p.ID, err)
	}
	p.CreatedAt = ts
	p.URL = url.String
	p.LinkedPostID = linked.String
	return p, nil
}

func scanRank(rows *sql.Rows) (model.Rank, error) {
	var r model.Rank
	var mdl, prompt sql.NullString
	var run string
	if err := rows.Scan(&r.ID, &r.PostID, &run, &r.Reason, &r.Score, &mdl, &prompt); err != nil {
		return r, fmt.Errorf("scan rank: %w", err)
	}
	ts, err := parseTime(run)
	if err != nil {
		return r, fmt.Errorf("rank %s run_time: %w", r.ID, err)
	}
	r.RunTime = ts
	r.Model = mdl.String
	r.Prompt = prompt.String
	return r, nil
}

func encodeContent(c model.ArticleContent) (string, error) {
	type tagged struct {
		Plain      string            `json:"plain,omitempty"`
		Paragraphs []model.Paragraph `json:"paragraphs,omitempty"`
	}
	b, err := json.Marshal(tagged{Plain: c.Plain, Paragraphs: c.Paragraphs})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *DB) idExists(ctx context.Context, table, id string) (bool, error) {
	q, args, err := sq.Select("1").From(table).Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = d.sql.QueryRowContext(ctx, q, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
