// Package metrics exposes ingestion and HTTP metrics to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/usecase"
)

const namespace = "stockpipe"

// Registry holds every collector the pipeline exports.
type Registry struct {
	reg *prometheus.Registry

	IngestDays        *prometheus.CounterVec
	IngestRows        *prometheus.CounterVec
	IngestRuns        *prometheus.CounterVec
	IngestRunDuration *prometheus.HistogramVec
	LastRunFinished   *prometheus.GaugeVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// NewRegistry creates a registry with Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		IngestDays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_days_total",
			Help:      "Days processed by ingestion, by outcome.",
		}, []string{"market", "outcome"}),
		IngestRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_total",
			Help:      "Rows written to partitions.",
		}, []string{"market"}),
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Finished ingestion runs, by result (complete, incomplete, canceled).",
		}, []string{"market", "result"}),
		IngestRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Wall time of ingestion runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"market"}),
		LastRunFinished: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_last_run_finished_timestamp_seconds",
			Help:      "Unix time the last ingestion run finished.",
		}, []string{"market"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.IngestDays, r.IngestRows, r.IngestRuns, r.IngestRunDuration, r.LastRunFinished,
		r.HTTPRequests, r.HTTPDuration,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// GinMiddleware records request counts and latency by matched route.
func (r *Registry) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		r.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Recorder implements usecase.RunRecorder on top of a Registry.
type Recorder struct {
	r *Registry

	mu      sync.Mutex
	markets map[string]string // run ID → market
}

// usecase.RunRecorder を実装していることをコンパイル時に検証します。
var _ usecase.RunRecorder = (*Recorder)(nil)

// NewRecorder creates a Recorder feeding r.
func NewRecorder(r *Registry) *Recorder {
	return &Recorder{r: r, markets: make(map[string]string)}
}

func (m *Recorder) StartRun(_ context.Context, run entity.Run) error {
	m.mu.Lock()
	m.markets[run.ID] = run.Market
	m.mu.Unlock()
	return nil
}

func (m *Recorder) RecordDay(_ context.Context, runID string, result entity.DayResult) error {
	m.mu.Lock()
	market := m.markets[runID]
	m.mu.Unlock()

	m.r.IngestDays.WithLabelValues(market, string(result.Outcome)).Inc()
	if result.Outcome == entity.OutcomeWritten {
		m.r.IngestRows.WithLabelValues(market).Add(float64(result.Rows))
	}
	return nil
}

func (m *Recorder) FinishRun(_ context.Context, s entity.Summary) error {
	m.mu.Lock()
	delete(m.markets, s.RunID)
	m.mu.Unlock()

	result := "complete"
	switch {
	case s.Canceled:
		result = "canceled"
	case !s.Complete():
		result = "incomplete"
	}
	m.r.IngestRuns.WithLabelValues(s.Market, result).Inc()
	if !s.StartedAt.IsZero() && !s.FinishedAt.IsZero() {
		m.r.IngestRunDuration.WithLabelValues(s.Market).Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
	}
	m.r.LastRunFinished.WithLabelValues(s.Market).Set(float64(s.FinishedAt.Unix()))
	return nil
}
