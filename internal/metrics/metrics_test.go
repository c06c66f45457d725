package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsExposure(t *testing.T) {
	CollectRuns.Inc()
	CollectErrors.Inc()
	PostsIngested.Inc()
	IncLLMRetry("score")
	IncCommandRun("collect")
	ObserveStageDuration("collect", time.Now().Add(-1500*time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"newsforge_collect_runs_total",
		"newsforge_collect_errors_total",
		"newsforge_posts_ingested_total",
		"newsforge_llm_retries_total",
		"newsforge_command_runs_total",
		"newsforge_stage_duration_seconds",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}
