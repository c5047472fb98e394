package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/grvbrk/toptube_server/internal/utils"
	"github.com/rs/zerolog"
)

const (
	countryChannelLimit = 100
	countryRecentLimit  = 10
	keyCountries        = "countries"
)

type CountryHandler struct {
	CountryStore store.CountryStore
	Rankings     RankReader
	Cache        store.Cache
	Logger       zerolog.Logger
}

func NewCountryHandler(countryStore store.CountryStore, rankings RankReader, cache store.Cache, logger zerolog.Logger) *CountryHandler {
	return &CountryHandler{
		CountryStore: countryStore,
		Rankings:     rankings,
		Cache:        cache,
		Logger:       logger.With().Str("component", "countries").Logger(),
	}
}

func (ch *CountryHandler) HandlerGetCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := cached(r.Context(), ch.Cache, ch.Logger, keyCountries, ch.CountryStore.ListCountries)
	if err != nil {
		writeError(w, ch.Logger, err, "Countries not found")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"countries": countries, "total": len(countries)})
}

// HandlerGetCountry returns a country with its ranked channels and its
// latest rank movements.
func (ch *CountryHandler) HandlerGetCountry(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	ctx := r.Context()

	country, err := ch.CountryStore.GetCountry(ctx, code)
	if err != nil {
		writeError(w, ch.Logger, err, "Country not found")
		return
	}

	channels, err := cached(ctx, ch.Cache, ch.Logger, "country:"+code, func(ctx context.Context) ([]models.RankedChannel, error) {
		return ch.Rankings.CountryLeaderboard(ctx, code, countryChannelLimit)
	})
	if err != nil {
		writeError(w, ch.Logger, err, "Country not found")
		return
	}

	changes, err := ch.Rankings.RecentChanges(ctx, code, countryRecentLimit)
	if err != nil {
		writeError(w, ch.Logger, err, "Country not found")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"country":                country,
		"channels":               channels,
		"recent_ranking_changes": changes,
	})
}

// HandlerGetNeighbors lists other countries from the same region.
func (ch *CountryHandler) HandlerGetNeighbors(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	limit := utils.QueryInt(r, "limit", 8, 1, 30)

	country, err := ch.CountryStore.GetCountry(r.Context(), code)
	if err != nil {
		writeError(w, ch.Logger, err, "Country not found")
		return
	}

	neighbors, err := ch.CountryStore.Neighbors(r.Context(), country.Region, country.Code, limit)
	if err != nil {
		writeError(w, ch.Logger, err, "Country not found")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"country_code":    country.Code,
		"current_country": country.Name,
		"current_region":  country.Region,
		"neighbors":       neighbors,
	})
}

type createCountryRequest struct {
	Code      string `json:"code" validate:"required,len=2,alpha"`
	Name      string `json:"name" validate:"required,max=100"`
	FlagEmoji string `json:"flag_emoji" validate:"max=16"`
	Region    string `json:"region" validate:"max=50"`
}

func (ch *CountryHandler) HandlerCreateCountry(w http.ResponseWriter, r *http.Request) {
	var req createCountryRequest
	if err := utils.ReadJSON(w, r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	country := &models.Country{
		Code:      strings.ToUpper(req.Code),
		Name:      strings.TrimSpace(req.Name),
		FlagEmoji: req.FlagEmoji,
		Region:    req.Region,
	}
	if err := ch.CountryStore.CreateCountry(r.Context(), country); err != nil {
		writeError(w, ch.Logger, err, "Country not found")
		return
	}

	invalidate(r.Context(), ch.Cache, ch.Logger)
	utils.WriteJSON(w, http.StatusCreated, utils.Envelope{"message": "Country created", "country": country})
}
