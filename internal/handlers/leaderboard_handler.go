package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/grvbrk/toptube_server/internal/leaderboard"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/grvbrk/toptube_server/internal/utils"
	"github.com/rs/zerolog"
)

const (
	globalPoolSize = 500
	keyGlobal      = "leaderboard:global"
)

// LeaderboardEntry is a ranked row ready for display.
type LeaderboardEntry struct {
	models.Channel
	Rank                 int                `json:"rank"`
	RankChange           leaderboard.Change `json:"rank_change"`
	SubscribersFormatted string             `json:"subscribers_formatted"`
}

type LeaderboardHandler struct {
	CountryStore store.CountryStore
	Rankings     RankReader
	Cache        store.Cache
	Logger       zerolog.Logger
}

func NewLeaderboardHandler(countryStore store.CountryStore, rankings RankReader, cache store.Cache, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		CountryStore: countryStore,
		Rankings:     rankings,
		Cache:        cache,
		Logger:       logger.With().Str("component", "leaderboard").Logger(),
	}
}

// entries keeps each channel's position in the unfiltered list so a
// filtered view still shows true ranks.
func entries(list []models.Channel, global bool) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(list))
	for i, c := range list {
		rank, prev := i+1, c.PreviousRank
		if global {
			prev = c.PreviousGlobalRank
			if c.GlobalRank != nil {
				rank = *c.GlobalRank
			}
		} else if c.CurrentRank != nil {
			rank = *c.CurrentRank
		}
		out = append(out, LeaderboardEntry{
			Channel:              c,
			Rank:                 rank,
			RankChange:           leaderboard.RankChange(rank, prev),
			SubscribersFormatted: leaderboard.FormatNumber(c.SubscriberCount),
		})
	}
	return out
}

func unranked(list []models.RankedChannel) []models.Channel {
	out := make([]models.Channel, 0, len(list))
	for _, rc := range list {
		out = append(out, rc.Channel)
	}
	return out
}

// HandlerGetGlobalLeaderboard serves the global top list filtered and
// sorted through the leaderboard engine.
func (lh *LeaderboardHandler) HandlerGetGlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := utils.QueryInt(r, "limit", 100, 1, globalPoolSize)
	params := leaderboard.Params{
		Search:  q.Get("search"),
		Country: strings.ToUpper(q.Get("country")),
		Status:  q.Get("status"),
		Sort:    leaderboard.ValidateSortKey(q.Get("sort")),
	}
	if strings.EqualFold(params.Country, leaderboard.All) {
		params.Country = leaderboard.All
	}

	pool, err := cached(r.Context(), lh.Cache, lh.Logger, keyGlobal, func(ctx context.Context) ([]models.Channel, error) {
		ranked, err := lh.Rankings.GlobalLeaderboard(ctx, globalPoolSize)
		return unranked(ranked), err
	})
	if err != nil {
		writeError(w, lh.Logger, err, "Leaderboard not found")
		return
	}

	rows := entries(pool, true)
	filtered := leaderboard.FilterSort(pool, params)

	byID := make(map[string]LeaderboardEntry, len(rows))
	for _, e := range rows {
		byID[e.ChannelID] = e
	}
	out := make([]LeaderboardEntry, 0, min(limit, len(filtered)))
	for _, c := range filtered[:min(limit, len(filtered))] {
		out = append(out, byID[c.ChannelID])
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"channels": out, "total": len(filtered)})
}

func (lh *LeaderboardHandler) HandlerGetCountryLeaderboard(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	limit := utils.QueryInt(r, "limit", 50, 1, 100)

	country, err := lh.CountryStore.GetCountry(r.Context(), code)
	if err != nil {
		writeError(w, lh.Logger, err, "Country not found")
		return
	}

	ranked, err := lh.Rankings.CountryLeaderboard(r.Context(), code, limit)
	if err != nil {
		writeError(w, lh.Logger, err, "Country not found")
		return
	}

	rows := entries(unranked(ranked), false)
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"country": country, "channels": rows, "total": len(rows)})
}

func (lh *LeaderboardHandler) HandlerGetFastestGrowing(w http.ResponseWriter, r *http.Request) {
	limit := utils.QueryInt(r, "limit", 20, 1, 100)
	channels, err := lh.Rankings.FastestGrowing(r.Context(), limit)
	if err != nil {
		writeError(w, lh.Logger, err, "Leaderboard not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"channels": channels})
}

func (lh *LeaderboardHandler) HandlerGetBiggestGainers(w http.ResponseWriter, r *http.Request) {
	limit := utils.QueryInt(r, "limit", 20, 1, 100)
	channels, err := lh.Rankings.BiggestGainers(r.Context(), limit)
	if err != nil {
		writeError(w, lh.Logger, err, "Leaderboard not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"channels": channels})
}
