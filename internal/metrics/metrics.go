package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GenerateRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peerlink_generate_runs_total",
		Help: "Total recommendation generations",
	})
	GenerateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "peerlink_generate_duration_seconds",
		Help:    "Recommendation generation duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	CandidatesScored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peerlink_candidates_scored_total",
		Help: "Total candidates scored",
	})
	CandidateSkips = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peerlink_candidate_skips_total",
		Help: "Candidates skipped because scoring failed",
	})
	CacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peerlink_cache_requests_total",
		Help: "Cache lookups by outcome",
	}, []string{"outcome"})
	RefreshRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peerlink_refresh_runs_total",
		Help: "Total batch refresh runs",
	})
	RefreshErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peerlink_refresh_errors_total",
		Help: "Per-user refresh failures",
	})
	Feedback = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peerlink_feedback_total",
		Help: "Recommendation feedback by action",
	}, []string{"action"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peerlink_command_runs_total",
		Help: "CLI command runs",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peerlink_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

// Cache outcomes.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheStale    = "stale"
	CacheStaleHit = "stale_hit"
	CacheBypass   = "bypass"
)

func init() {
	prometheus.MustRegister(GenerateRuns, GenerateDuration, CandidatesScored, CandidateSkips,
		CacheRequests, RefreshRuns, RefreshErrors, Feedback, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveGenerateDuration records a generation run duration.
func ObserveGenerateDuration(start time.Time) {
	GenerateDuration.Observe(time.Since(start).Seconds())
}

func IncCacheRequest(outcome string) { CacheRequests.WithLabelValues(outcome).Inc() }

func IncFeedback(action string) { Feedback.WithLabelValues(action).Inc() }

func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }

func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
