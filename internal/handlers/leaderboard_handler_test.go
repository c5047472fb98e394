package handlers

import (
	"net/http"
	"testing"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func globalRanked() []models.RankedChannel {
	list := []models.Channel{
		{ChannelID: "UC3", Title: "Charlie", CountryCode: "IN", SubscriberCount: 500, ViralLabel: models.ViralExploding, GlobalRank: intp(1), PreviousGlobalRank: intp(1)},
		{ChannelID: "UC1", Title: "Alpha", CountryCode: "US", SubscriberCount: 300, ViralLabel: models.ViralRising, GlobalRank: intp(2), PreviousGlobalRank: intp(3)},
		{ChannelID: "UC2", Title: "Bravo", CountryCode: "US", SubscriberCount: 200, ViralLabel: models.ViralStable, GlobalRank: intp(3)},
	}
	out := make([]models.RankedChannel, 0, len(list))
	for i, c := range list {
		out = append(out, models.RankedChannel{Channel: c, Rank: i + 1})
	}
	return out
}

func TestHandlerGetGlobalLeaderboard(t *testing.T) {
	rankings := &fakeRankings{global: globalRanked()}
	cache := newMemCache()
	h := NewLeaderboardHandler(&fakeCountryStore{}, rankings, cache, zerolog.Nop())

	rec := serve(t, http.MethodGet, "/leaderboard/global", h.HandlerGetGlobalLeaderboard, "/leaderboard/global?country=us&sort=name", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["total"])

	list := body["channels"].([]any)
	first := list[0].(map[string]any)
	assert.Equal(t, "UC1", first["channel_id"])
	assert.EqualValues(t, 2, first["rank"], "filtered views keep global ranks")
	assert.Equal(t, "improved", first["rank_change"].(map[string]any)["direction"])
	assert.Equal(t, "300", first["subscribers_formatted"])

	rec = serve(t, http.MethodGet, "/leaderboard/global", h.HandlerGetGlobalLeaderboard, "/leaderboard/global?country=ALL&limit=1", nil)
	body = decode(t, rec)
	assert.EqualValues(t, 3, body["total"])
	assert.Len(t, body["channels"], 1)
	assert.Equal(t, 1, rankings.calls, "second request served from cache")
}

func TestHandlerGetGlobalLeaderboard_LegacyStatus(t *testing.T) {
	h := NewLeaderboardHandler(&fakeCountryStore{}, &fakeRankings{global: globalRanked()}, nil, zerolog.Nop())

	rec := serve(t, http.MethodGet, "/leaderboard/global", h.HandlerGetGlobalLeaderboard, "/leaderboard/global?status=Rising%20Fast", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["total"])
	assert.Equal(t, "UC1", body["channels"].([]any)[0].(map[string]any)["channel_id"])
}

func TestHandlerGetCountryLeaderboard(t *testing.T) {
	countries := &fakeCountryStore{countries: []models.CountryWithTop{{Country: models.Country{Code: "US", Name: "United States"}}}}
	rankings := &fakeRankings{country: map[string][]models.RankedChannel{
		"US": {
			{Channel: models.Channel{ChannelID: "UC1", CurrentRank: intp(1), PreviousRank: intp(1)}, Rank: 1},
			{Channel: models.Channel{ChannelID: "UC2", CurrentRank: intp(2), PreviousRank: intp(1)}, Rank: 2},
		},
	}}
	h := NewLeaderboardHandler(countries, rankings, nil, zerolog.Nop())

	rec := serve(t, http.MethodGet, "/leaderboard/country/{code}", h.HandlerGetCountryLeaderboard, "/leaderboard/country/us", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["total"])
	second := body["channels"].([]any)[1].(map[string]any)
	assert.Equal(t, "declined", second["rank_change"].(map[string]any)["direction"])

	rec = serve(t, http.MethodGet, "/leaderboard/country/{code}", h.HandlerGetCountryLeaderboard, "/leaderboard/country/zz", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
