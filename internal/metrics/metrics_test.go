package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/grvbrk/toptube_server/internal/youtube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/channels/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/channels/UC123", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	body := scrape(t, m)
	assert.Contains(t, body, `toptube_api_request_duration_seconds_count{endpoint="/api/channels/{id}",method="GET",status="418"} 1`)
	assert.NotContains(t, body, "UC123")
}

func TestRecorders(t *testing.T) {
	m := New()

	m.CacheHit("k")
	m.CacheMiss("k")
	m.CacheMiss("k")
	m.YouTubeCall("channels.list", nil)
	m.YouTubeCall("channels.list", fmt.Errorf("wrapped: %w", youtube.ErrQuotaExceeded))
	m.JobRun("update_rankings", time.Second, errors.New("boom"))

	body := scrape(t, m)
	assert.Contains(t, body, "toptube_cache_hits_total 1")
	assert.Contains(t, body, "toptube_cache_misses_total 2")
	assert.Contains(t, body, `toptube_youtube_calls_total{op="channels.list",result="ok"} 1`)
	assert.Contains(t, body, `toptube_youtube_calls_total{op="channels.list",result="quota_exceeded"} 1`)
	assert.Contains(t, body, `toptube_job_runs_total{job="update_rankings",result="error"} 1`)
}
