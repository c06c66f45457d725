package xclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// PageSize is the number of records in a full provider page.
const PageSize = 20

// RawAuthor is the embedded author sub-record.
type RawAuthor struct {
	UserName string `json:"userName"`
}

// RawMetrics is the structured "public metrics" sub-record.
type RawMetrics struct {
	RetweetCount    int `json:"retweet_count"`
	ReplyCount      int `json:"reply_count"`
	LikeCount       int `json:"like_count"`
	QuoteCount      int `json:"quote_count"`
	ImpressionCount int `json:"impression_count"`
}

// RawTweet mirrors one provider record. Engagement counters appear either
// in PublicMetrics or as flat fields, sometimes both.
type RawTweet struct {
	Author            RawAuthor   `json:"author"`
	CreatedAt         string      `json:"createdAt"`
	Text              string      `json:"text"`
	URL               string      `json:"url"`
	IsReply           bool        `json:"isReply"`
	InReplyToID       string      `json:"inReplyToId"`
	InReplyToUsername string      `json:"inReplyToUsername"`
	PublicMetrics     *RawMetrics `json:"public_metrics"`
	RetweetCount      int         `json:"retweetCount"`
	ReplyCount        int         `json:"replyCount"`
	LikeCount         int         `json:"likeCount"`
	QuoteCount        int         `json:"quoteCount"`
	ViewCount         int         `json:"viewCount"`
	BookmarkCount     int         `json:"bookmarkCount"`
	RetweetedTweet    *RawTweet   `json:"retweeted_tweet"`
	QuotedTweet       *RawTweet   `json:"quoted_tweet"`
}

// Page is one cursor page of raw records.
type Page struct {
	Tweets      []RawTweet
	HasNextPage bool
	NextCursor  string
}

// TweetSource defines what we use from the provider API.
type TweetSource interface {
	UserLastTweets(ctx context.Context, username, cursor string) (Page, error)
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("provider status %d", e.Code) }

// IsStatus reports whether err is a non-2xx provider response.
func IsStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// HTTPClient is an API-key client for the provider's paged tweet endpoint.
type HTTPClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.twitterapi.io"
	}
	return &HTTPClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     newDefaultLimiter(),
		maxAttempts: getEnvInt("PROVIDER_MAX_ATTEMPTS", 3),
		baseBackoff: time.Duration(getEnvInt("PROVIDER_BASE_BACKOFF_MS", 500)) * time.Millisecond,
	}
}

func (c *HTTPClient) auth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

// UserLastTweets fetches one page of an account's latest tweets. Cursor is
// empty on the first call; the provider issues the next one.
func (c *HTTPClient) UserLastTweets(ctx context.Context, username, cursor string) (Page, error) {
	var out Page
	if username == "" {
		return out, errors.New("empty username")
	}
	q := url.Values{}
	q.Set("userName", username)
	q.Set("cursor", cursor)
	u := fmt.Sprintf("%s/twitter/user/last_tweets?%s", c.baseURL, q.Encode())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return out, err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return out, &StatusError{Code: resp.StatusCode}
	}
	var raw struct {
		Data struct {
			Tweets      []RawTweet `json:"tweets"`
			HasNextPage bool       `json:"has_next_page"`
			NextCursor  string     `json:"next_cursor"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return out, err
	}
	out.Tweets = raw.Data.Tweets
	out.HasNextPage = raw.Data.HasNextPage
	out.NextCursor = raw.Data.NextCursor
	return out, nil
}

func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	lastCode := 0
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				lastCode = resp.StatusCode
				ra := resp.Header.Get("Retry-After")
				_ = resp.Body.Close()
				wait := backoff
				if ra != "" {
					if secs, err := strconv.Atoi(ra); err == nil {
						wait = time.Duration(secs) * time.Second
					} else if t, err := http.ParseTime(ra); err == nil {
						if d := time.Until(t); d > 0 {
							wait = d
						}
					}
				}
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				continue
			}
			return resp, nil
		}
		lastErr = err
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	// A run of retryable statuses keeps its status identity so callers
	// can distinguish provider refusal from transport failure.
	if lastCode != 0 {
		return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxAttempts, &StatusError{Code: lastCode})
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil && i > 0 {
		return i
	}
	return def
}
