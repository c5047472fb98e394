package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/grvbrk/toptube_server/internal/store/analytics"
	"github.com/grvbrk/toptube_server/internal/utils"
	"github.com/rs/zerolog"
)

const keyMapData = "stats:map-data"

// DailySeriesReader is the optional analytics backend for per-day series.
type DailySeriesReader interface {
	DailySeries(ctx context.Context, channelID string, days int) ([]analytics.DailyPoint, error)
}

type StatsHandler struct {
	CountryStore store.CountryStore
	Growth       GrowthReader
	Rankings     RankReader
	Analytics    DailySeriesReader
	Cache        store.Cache
	Logger       zerolog.Logger
}

func NewStatsHandler(countryStore store.CountryStore, growth GrowthReader, rankings RankReader, series DailySeriesReader, cache store.Cache, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		CountryStore: countryStore,
		Growth:       growth,
		Rankings:     rankings,
		Analytics:    series,
		Cache:        cache,
		Logger:       logger.With().Str("component", "stats").Logger(),
	}
}

func mapEntries(countries []models.CountryWithTop) []models.MapEntry {
	out := make([]models.MapEntry, 0, len(countries))
	for _, c := range countries {
		if c.TopChannel == nil {
			continue
		}
		top := *c.TopChannel
		if top.ViralLabel == "" {
			top.ViralLabel = models.ViralStable
		}
		out = append(out, models.MapEntry{
			CountryCode: c.Code,
			CountryName: c.Name,
			FlagEmoji:   c.FlagEmoji,
			TopChannel:  top,
		})
	}
	return out
}

// HandlerGetMapData returns the top channel of every country that has one.
func (sh *StatsHandler) HandlerGetMapData(w http.ResponseWriter, r *http.Request) {
	data, err := cached(r.Context(), sh.Cache, sh.Logger, keyMapData, func(ctx context.Context) ([]models.MapEntry, error) {
		countries, err := sh.CountryStore.ListCountries(ctx)
		return mapEntries(countries), err
	})
	if err != nil {
		writeError(w, sh.Logger, err, "Map data not found")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"map_data": data})
}

func (sh *StatsHandler) HandlerGetChannelHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	days := utils.QueryInt(r, "days", 30, 1, 90)

	history, err := sh.Growth.History(r.Context(), id, days)
	if err != nil {
		writeError(w, sh.Logger, err, "Channel not found")
		return
	}

	resp := utils.Envelope{"channel_id": id, "history": history, "days": days}
	if sh.Analytics != nil {
		daily, err := sh.Analytics.DailySeries(r.Context(), id, days)
		if err != nil {
			sh.Logger.Warn().Err(err).Str("channel_id", id).Msg("daily series unavailable")
		} else {
			resp["daily"] = daily
		}
	}

	utils.WriteJSON(w, http.StatusOK, resp)
}

func (sh *StatsHandler) HandlerGetRankingChanges(w http.ResponseWriter, r *http.Request) {
	limit := utils.QueryInt(r, "limit", 20, 1, 100)

	changes, err := sh.Rankings.RecentChanges(r.Context(), "", limit)
	if err != nil {
		writeError(w, sh.Logger, err, "Ranking changes not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"changes": changes})
}

// HandlerPredictOvertake estimates when one channel passes another.
func (sh *StatsHandler) HandlerPredictOvertake(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	target := chi.URLParam(r, "target")
	if id == target {
		utils.WriteError(w, http.StatusBadRequest, "Pick two different channels")
		return
	}

	prediction, err := sh.Growth.PredictOvertake(r.Context(), id, target)
	if err != nil {
		writeError(w, sh.Logger, err, "One or both channels not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"channel_id": id, "target_channel_id": target, "prediction": prediction})
}
