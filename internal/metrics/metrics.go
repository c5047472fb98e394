package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/grvbrk/toptube_server/internal/youtube"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the API and its workers.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	YouTubeCalls     *prometheus.CounterVec
	JobRuns          *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toptube_api_request_duration_seconds",
				Help:    "HTTP request duration in seconds, by route and method.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "method", "status"},
		),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toptube_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toptube_cache_hits_total",
			Help: "Total Redis cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toptube_cache_misses_total",
			Help: "Total Redis cache misses.",
		}),
		YouTubeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toptube_youtube_calls_total",
				Help: "YouTube Data API calls, by operation and result.",
			},
			[]string{"op", "result"},
		),
		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toptube_job_runs_total",
				Help: "Scheduler job runs, by job and result.",
			},
			[]string{"job", "result"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toptube_job_duration_seconds",
				Help:    "Scheduler job duration in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"job"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestDuration,
		m.RequestsInFlight,
		m.CacheHits,
		m.CacheMisses,
		m.YouTubeCalls,
		m.JobRuns,
		m.JobDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) CacheHit(string)  { m.CacheHits.Inc() }
func (m *Metrics) CacheMiss(string) { m.CacheMisses.Inc() }

func (m *Metrics) YouTubeCall(op string, err error) {
	m.YouTubeCalls.WithLabelValues(op, youtubeResult(err)).Inc()
}

func (m *Metrics) JobRun(job string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JobRuns.WithLabelValues(job, result).Inc()
	m.JobDuration.WithLabelValues(job).Observe(took.Seconds())
}

func youtubeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, youtube.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, youtube.ErrChannelNotFound):
		return "not_found"
	case errors.Is(err, youtube.ErrInvalidAPIKey):
		return "invalid_key"
	default:
		return "error"
	}
}

// Middleware records request duration and in-flight count. The endpoint
// label is the matched chi route pattern so ids never become labels.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestDuration.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
