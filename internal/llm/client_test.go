package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompleteSendsSchemaAndParsesChoice(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("auth header = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.JSONSchema.Name != "rank" {
			t.Errorf("schema not forwarded: %+v", req.ResponseFormat)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"reason\":\"big\",\"score\":9}"}}]}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, "key")
	var out struct {
		Reason string `json:"reason"`
		Score  int    `json:"score"`
	}
	err := CompleteInto(context.Background(), c, Request{
		Model:  "some/model",
		Prompt: "rank this",
		Schema: Schema{Name: "rank", Definition: json.RawMessage(`{"type":"object"}`)},
	}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if out.Reason != "big" || out.Score != 9 {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestComplete429IsRateLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, "key")
	_, err := c.Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	if !IsRateLimit(err) {
		t.Fatalf("expected rate-limit error, got %v", err)
	}
}

func TestCompleteOtherStatusIsFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, "key")
	_, err := c.Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	if err == nil || IsRateLimit(err) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}
