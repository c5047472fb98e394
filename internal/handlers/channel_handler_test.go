package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/grvbrk/toptube_server/internal/youtube"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChannels() []models.Channel {
	return []models.Channel{
		{ChannelID: "UC1", Title: "Alpha", CountryCode: "US", CountryName: "United States", SubscriberCount: 300, ViralLabel: models.ViralRising, CurrentRank: intp(1), PreviousRank: intp(2)},
		{ChannelID: "UC2", Title: "Bravo", CountryCode: "US", CountryName: "United States", SubscriberCount: 200, ViralLabel: models.ViralStable, CurrentRank: intp(2), PreviousRank: intp(1)},
		{ChannelID: "UC3", Title: "Charlie", CountryCode: "IN", CountryName: "India", SubscriberCount: 500, ViralLabel: models.ViralExploding, CurrentRank: intp(1)},
	}
}

func newChannelFixture() (*ChannelHandler, *fakeIngester, *fakeJobs, *memCache) {
	ing := &fakeIngester{}
	jobs := &fakeJobs{}
	cache := newMemCache()
	h := NewChannelHandler(&fakeChannelStore{channels: sampleChannels()}, fakeGrowth{}, &fakeRankings{},
		fakeVideos{}, ing, jobs, cache, zerolog.Nop())
	return h, ing, jobs, cache
}

func TestHandlerGetChannels(t *testing.T) {
	h, _, _, _ := newChannelFixture()

	rec := serve(t, http.MethodGet, "/channels", h.HandlerGetChannels, "/channels?sort=subscribers&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 3, body["total"])
	list := body["channels"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "UC3", list[0].(map[string]any)["channel_id"])

	rec = serve(t, http.MethodGet, "/channels", h.HandlerGetChannels, "/channels?country_code=us&status=Rising", nil)
	body = decode(t, rec)
	assert.EqualValues(t, 1, body["total"])

	rec = serve(t, http.MethodGet, "/channels", h.HandlerGetChannels, "/channels?skip=10", nil)
	body = decode(t, rec)
	assert.Empty(t, body["channels"])
	assert.EqualValues(t, 3, body["total"])
}

func TestHandlerGetChannelByID(t *testing.T) {
	h, _, _, _ := newChannelFixture()

	rec := serve(t, http.MethodGet, "/channels/{id}", h.HandlerGetChannelByID, "/channels/UC1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "UC1", body["channel"].(map[string]any)["channel_id"])
	assert.Equal(t, "improved", body["rank_change"].(map[string]any)["direction"])
	assert.Len(t, body["top_videos"], 1)

	rec = serve(t, http.MethodGet, "/channels/{id}", h.HandlerGetChannelByID, "/channels/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Channel not found", decode(t, rec)["error"])
}

func TestHandlerGetChannelByID_VideosUnavailable(t *testing.T) {
	h, _, _, _ := newChannelFixture()
	h.Videos = fakeVideos{err: youtube.ErrQuotaExceeded}

	rec := serve(t, http.MethodGet, "/channels/{id}", h.HandlerGetChannelByID, "/channels/UC2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["top_videos"])
}

func TestHandlerGetRelatedChannels(t *testing.T) {
	h, _, _, _ := newChannelFixture()

	rec := serve(t, http.MethodGet, "/channels/{id}/related", h.HandlerGetRelatedChannels, "/channels/UC1/related", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "US", body["country_code"])
	related := body["related_channels"].([]any)
	require.Len(t, related, 1)
	assert.Equal(t, "UC2", related[0].(map[string]any)["channel_id"])
}

func TestHandlerCompareChannels(t *testing.T) {
	h, _, _, _ := newChannelFixture()

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"one id", "ids=UC1", http.StatusBadRequest},
		{"duplicates collapse", "ids=UC1,UC1", http.StatusBadRequest},
		{"too many", "ids=a,b,c,d,e", http.StatusBadRequest},
		{"missing", "ids=UC1,ghost", http.StatusNotFound},
		{"ok", "ids=UC3,UC1", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, http.MethodGet, "/compare", h.HandlerCompareChannels, "/compare?"+tt.query, nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := serve(t, http.MethodGet, "/compare", h.HandlerCompareChannels, "/compare?ids=UC3,UC1", nil)
	list := decode(t, rec)["channels"].([]any)
	assert.Equal(t, "UC3", list[0].(map[string]any)["channel_id"])
	assert.Equal(t, "UC1", list[1].(map[string]any)["channel_id"])

	rec = serve(t, http.MethodGet, "/compare", h.HandlerCompareChannels, "/compare?ids=UC1,ghost", nil)
	assert.Equal(t, []any{"ghost"}, decode(t, rec)["missing"])
}

func TestHandlerCreateChannel(t *testing.T) {
	h, ing, jobs, cache := newChannelFixture()
	cache.data["countries"] = []byte("[]")

	rec := serve(t, http.MethodPost, "/channels", h.HandlerCreateChannel, "/channels", map[string]string{"channel_id": "UCnew", "country_code": "US"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"UCnew"}, ing.added)
	assert.Equal(t, []string{store.JobUpdateRankings}, jobs.triggered)
	assert.Equal(t, 1, cache.invalidated)

	rec = serve(t, http.MethodPost, "/channels", h.HandlerCreateChannel, "/channels", map[string]string{"channel_id": "UCnew", "country_code": "USA"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ing.addErr = youtube.ErrChannelNotFound
	rec = serve(t, http.MethodPost, "/channels", h.HandlerCreateChannel, "/channels", map[string]string{"channel_id": "UCghost", "country_code": "US"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ing.addErr = store.ErrAlreadyExists
	rec = serve(t, http.MethodPost, "/channels", h.HandlerCreateChannel, "/channels", map[string]string{"channel_id": "UC1", "country_code": "US"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	ing.addErr = errors.New("boom")
	rec = serve(t, http.MethodPost, "/channels", h.HandlerCreateChannel, "/channels", map[string]string{"channel_id": "UC9", "country_code": "US"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", decode(t, rec)["error"])
}
