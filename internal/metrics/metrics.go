package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the engine's counters and histograms under one
// Prometheus registerer so tests can use a fresh one instead of the
// global default.
type Registry struct {
	reg *prometheus.Registry

	StagesExecuted  *prometheus.CounterVec
	CacheHits       prometheus.Counter
	SandboxFailures *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
}

// New creates a Registry with all metrics registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		StagesExecuted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeforge",
			Name:      "stages_executed_total",
			Help:      "Number of stage invocations actually run (excludes cache hits).",
		}, []string{"stage"}),
		CacheHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pipeforge",
			Name:      "cache_hits_total",
			Help:      "Number of stage invocations skipped because their identifier was already committed.",
		}),
		SandboxFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeforge",
			Name:      "sandbox_failures_total",
			Help:      "Number of stage invocations that failed to even start a sandbox.",
		}, []string{"stage"}),
		StageDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pipeforge",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of executed (non-cached) stage invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	return m
}

// ObserveStage records one executed stage's duration and increments its
// counter.
func (m *Registry) ObserveStage(stage string, d time.Duration) {
	m.StagesExecuted.WithLabelValues(stage).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Serve starts an HTTP server exposing /metrics on addr in the
// background and returns immediately, without waiting for the listener.
// It runs until ctx is canceled; failures are logged, never returned,
// since metrics are diagnostic only.
func (m *Registry) Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Warn("metrics server stopped", "error", err)
		}
	}()
}
