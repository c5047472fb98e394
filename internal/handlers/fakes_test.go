package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/grvbrk/toptube_server/internal/ingest"
	"github.com/grvbrk/toptube_server/internal/middlewares"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/scheduler"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

// serve routes a single request through a chi router so URL params are
// populated the way the real router does it.
func serve(t *testing.T, method, pattern string, h http.HandlerFunc, target string, body any, ctx ...func(context.Context) context.Context) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	r := chi.NewRouter()
	r.Method(method, pattern, h)

	req := httptest.NewRequest(method, target, rd)
	for _, fn := range ctx {
		req = req.WithContext(fn(req.Context()))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func asVisitor(id string) func(context.Context) context.Context {
	return func(ctx context.Context) context.Context {
		return context.WithValue(ctx, middlewares.VisitorContextKey, id)
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type fakeChannelStore struct {
	store.ChannelStore
	channels []models.Channel
	deleted  []string
}

func (f *fakeChannelStore) ListChannels(_ context.Context, filter store.ChannelFilter) ([]models.Channel, int, error) {
	var out []models.Channel
	for _, c := range f.channels {
		if filter.CountryCode == "" || c.CountryCode == filter.CountryCode {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (f *fakeChannelStore) GetChannel(_ context.Context, id string) (*models.Channel, error) {
	for _, c := range f.channels {
		if c.ChannelID == id {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeChannelStore) GetChannels(_ context.Context, ids []string) ([]models.Channel, error) {
	var out []models.Channel
	for _, c := range f.channels {
		for _, id := range ids {
			if c.ChannelID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (f *fakeChannelStore) RelatedChannels(_ context.Context, code, exclude string, limit int) ([]models.Channel, error) {
	out := []models.Channel{}
	for _, c := range f.channels {
		if c.CountryCode == code && c.ChannelID != exclude && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChannelStore) DeleteChannel(_ context.Context, id string) error {
	if _, err := f.GetChannel(context.Background(), id); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeChannelStore) ActiveChannelIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.channels))
	for _, c := range f.channels {
		ids = append(ids, c.ChannelID)
	}
	return ids, nil
}

type fakeCountryStore struct {
	store.CountryStore
	countries []models.CountryWithTop
	listCalls int
	created   []models.Country
}

func (f *fakeCountryStore) ListCountries(context.Context) ([]models.CountryWithTop, error) {
	f.listCalls++
	return f.countries, nil
}

func (f *fakeCountryStore) GetCountry(_ context.Context, code string) (*models.Country, error) {
	for _, c := range f.countries {
		if c.Code == code {
			return &c.Country, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeCountryStore) Neighbors(_ context.Context, region, exclude string, limit int) ([]models.CountryWithTop, error) {
	out := []models.CountryWithTop{}
	for _, c := range f.countries {
		if c.Region == region && c.Code != exclude && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCountryStore) CreateCountry(_ context.Context, c *models.Country) error {
	if _, err := f.GetCountry(context.Background(), c.Code); err == nil {
		return store.ErrAlreadyExists
	}
	f.created = append(f.created, *c)
	return nil
}

func (f *fakeCountryStore) CountryCodes(context.Context) ([]string, error) {
	codes := make([]string, 0, len(f.countries))
	for _, c := range f.countries {
		codes = append(codes, c.Code)
	}
	return codes, nil
}

type fakeRankings struct {
	global  []models.RankedChannel
	country map[string][]models.RankedChannel
	changes []models.RankHistoryEntry
	calls   int
}

func (f *fakeRankings) CountryLeaderboard(_ context.Context, code string, limit int) ([]models.RankedChannel, error) {
	f.calls++
	list := f.country[code]
	return list[:min(limit, len(list))], nil
}

func (f *fakeRankings) GlobalLeaderboard(_ context.Context, limit int) ([]models.RankedChannel, error) {
	f.calls++
	return f.global[:min(limit, len(f.global))], nil
}

func (f *fakeRankings) FastestGrowing(context.Context, int) ([]models.Channel, error) {
	return []models.Channel{}, nil
}

func (f *fakeRankings) BiggestGainers(context.Context, int) ([]models.Channel, error) {
	return []models.Channel{}, nil
}

func (f *fakeRankings) RankHistory(context.Context, string, int) ([]models.RankHistoryEntry, error) {
	return []models.RankHistoryEntry{}, nil
}

func (f *fakeRankings) RecentChanges(_ context.Context, _ string, limit int) ([]models.RankHistoryEntry, error) {
	return f.changes[:min(limit, len(f.changes))], nil
}

type fakeGrowth struct {
	overtake models.OvertakePrediction
}

func (fakeGrowth) History(_ context.Context, id string, _ int) ([]models.StatsSnapshot, error) {
	if id == "missing" {
		return nil, store.ErrNotFound
	}
	return []models.StatsSnapshot{{ChannelID: id, SubscriberCount: 100}}, nil
}

func (fakeGrowth) ViralPrediction(context.Context, string) (models.ViralPrediction, error) {
	return models.ViralPrediction{Label: models.ViralStable}, nil
}

func (f fakeGrowth) PredictOvertake(_ context.Context, id, target string) (models.OvertakePrediction, error) {
	if id == "missing" || target == "missing" {
		return models.OvertakePrediction{}, store.ErrNotFound
	}
	return f.overtake, nil
}

type fakeVideos struct{ err error }

func (f fakeVideos) TopVideos(context.Context, string, int) ([]models.YouTubeVideo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.YouTubeVideo{{VideoID: "v1"}}, nil
}

type fakeIngester struct {
	added    []string
	addErr   error
	imported []ingest.ImportItem
}

func (f *fakeIngester) AddChannel(_ context.Context, id, code string) (*models.Channel, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.added = append(f.added, id)
	return &models.Channel{ChannelID: id, CountryCode: code}, nil
}

func (f *fakeIngester) RefreshChannel(_ context.Context, id string) (*models.Channel, error) {
	return &models.Channel{ChannelID: id}, nil
}

func (f *fakeIngester) Import(_ context.Context, items []ingest.ImportItem) (ingest.ImportResult, error) {
	f.imported = append(f.imported, items...)
	return ingest.ImportResult{Inserted: len(items), Failed: []ingest.ImportFailure{}}, nil
}

type fakeJobs struct {
	mu        sync.Mutex
	triggered []string
	running   map[string]bool
	stopped   bool
}

func (f *fakeJobs) Trigger(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch id {
	case store.JobRefreshChannels, store.JobUpdateRankings, store.JobCalculateGrowth, store.JobRecordStats, store.JobDailyBlogPost:
	default:
		return scheduler.ErrUnknownJob
	}
	if f.running[id] {
		return scheduler.ErrJobRunning
	}
	if f.stopped {
		return scheduler.ErrStopped
	}
	f.triggered = append(f.triggered, id)
	return nil
}

// memCache is a JSON map standing in for Redis.
type memCache struct {
	data        map[string][]byte
	invalidated int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memCache) SetJSON(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *memCache) InvalidateAll(context.Context) error {
	c.data = map[string][]byte{}
	c.invalidated++
	return nil
}
