package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CollectRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsforge_collect_runs_total",
		Help: "Total collection runs",
	})
	CollectErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsforge_collect_errors_total",
		Help: "Total collection errors",
	})
	PostsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsforge_posts_ingested_total",
		Help: "Total posts handed to the store",
	})
	PostsDeduped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsforge_posts_deduped_total",
		Help: "Total post saves collapsed onto an existing row",
	})
	RecordsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsforge_records_skipped_total",
		Help: "Total raw records skipped for unparseable timestamps",
	})
	LLMCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsforge_llm_calls_total",
		Help: "Total model invocations",
	}, []string{"stage"})
	LLMRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsforge_llm_retries_total",
		Help: "Total model invocation retries after rate limiting",
	}, []string{"stage"})
	ArticlesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsforge_articles_written_total",
		Help: "Total articles rendered to disk",
	})
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsforge_stage_duration_seconds",
		Help:    "Pipeline stage duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsforge_command_runs_total",
		Help: "Total CLI command runs",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsforge_command_errors_total",
		Help: "Total CLI command errors",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(
		CollectRuns, CollectErrors, PostsIngested, PostsDeduped, RecordsSkipped,
		LLMCalls, LLMRetries, ArticlesWritten, StageDuration,
		CommandRuns, CommandErrors,
	)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveStageDuration records a stage run duration.
func ObserveStageDuration(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// IncLLMRetry increments the retry counter for a pipeline stage.
func IncLLMRetry(stage string) { LLMRetries.WithLabelValues(stage).Inc() }

// IncCommandRun increments the run counter for a CLI command.
func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }

// IncCommandError increments the error counter for a CLI command.
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
