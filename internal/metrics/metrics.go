package metrics

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/digestloop/core/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline stage metrics

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "digestloop",
		Name:      "run_stage_duration_seconds",
		Help:      "Duration of one pipeline stage within a run.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage", "outcome"})

	RunsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digestloop",
		Name:      "runs_completed_total",
		Help:      "Total runs finished, by delivery outcome.",
	}, []string{"outcome"})

	RunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "digestloop",
		Name:      "runs_in_flight",
		Help:      "Number of runs currently executing.",
	})

	QuotaReachedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digestloop",
		Name:      "quota_reached_total",
		Help:      "Total runs skipped because a tenant's plan limit was reached.",
	}, []string{"kind"})

	// Tick loop metrics

	TickCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "digestloop",
		Name:      "tick_cycle_duration_seconds",
		Help:      "Time taken for one tick sweep over due entries.",
		Buckets:   prometheus.DefBuckets,
	})

	TickEntriesClaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "digestloop",
		Name:      "tick_entries_claimed_total",
		Help:      "Total monitoring entries claimed as due across all sweeps.",
	})

	// Reaper metrics

	ReaperRescuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digestloop",
		Name:      "reaper_rescued_total",
		Help:      "Total stale runs handled by the reaper.",
	}, []string{"action"})

	ReaperCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "digestloop",
		Name:      "reaper_cycle_duration_seconds",
		Help:      "Time taken for one reaper cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// Process lifecycle

	ProcessStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "digestloop",
		Name:      "process_start_time_seconds",
		Help:      "Unix timestamp when the process started.",
	})

	ShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "digestloop",
		Name:      "shutdowns_total",
		Help:      "Number of times this process has shut down.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "digestloop",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digestloop",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		StageDuration,
		RunsCompletedTotal,
		RunsInFlight,
		QuotaReachedTotal,
		TickCycleDuration,
		TickEntriesClaimedTotal,
		ReaperRescuedTotal,
		ReaperCycleDuration,
		ProcessStartTime,
		ShutdownsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer builds the process's observability server: Prometheus scraping
// plus liveness/readiness probes backed by checker.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthHandler(checker.Liveness))
	mux.HandleFunc("/readyz", healthHandler(checker.Readiness))
	return &http.Server{Addr: addr, Handler: mux}
}

func healthHandler(check func(ctx context.Context) health.HealthResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := check(r.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(result)
	}
}
