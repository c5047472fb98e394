package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/grvbrk/toptube_server/internal/ingest"
	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/grvbrk/toptube_server/internal/utils"
	"github.com/grvbrk/toptube_server/internal/youtube"
	"github.com/rs/zerolog"
)

type GrowthReader interface {
	History(ctx context.Context, channelID string, days int) ([]models.StatsSnapshot, error)
	ViralPrediction(ctx context.Context, channelID string) (models.ViralPrediction, error)
	PredictOvertake(ctx context.Context, channelID, targetID string) (models.OvertakePrediction, error)
}

type RankReader interface {
	CountryLeaderboard(ctx context.Context, countryCode string, limit int) ([]models.RankedChannel, error)
	GlobalLeaderboard(ctx context.Context, limit int) ([]models.RankedChannel, error)
	FastestGrowing(ctx context.Context, limit int) ([]models.Channel, error)
	BiggestGainers(ctx context.Context, limit int) ([]models.Channel, error)
	RankHistory(ctx context.Context, channelID string, days int) ([]models.RankHistoryEntry, error)
	RecentChanges(ctx context.Context, countryCode string, limit int) ([]models.RankHistoryEntry, error)
}

type VideoSource interface {
	TopVideos(ctx context.Context, channelID string, limit int) ([]models.YouTubeVideo, error)
}

type ChannelSearcher interface {
	SearchChannels(ctx context.Context, query, regionCode string, maxResults int64) ([]models.YouTubeSearchResult, error)
}

type ChannelIngester interface {
	AddChannel(ctx context.Context, channelID, countryCode string) (*models.Channel, error)
	RefreshChannel(ctx context.Context, channelID string) (*models.Channel, error)
	Import(ctx context.Context, items []ingest.ImportItem) (ingest.ImportResult, error)
}

// JobTrigger starts a background job by id.
type JobTrigger interface {
	Trigger(id string) error
}

// writeError maps domain errors onto HTTP statuses. Unknown errors are
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error, notFound string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrAlreadyExists):
		utils.WriteError(w, http.StatusConflict, "Already exists")
	case errors.Is(err, store.ErrAlreadySubscribed):
		utils.WriteError(w, http.StatusBadRequest, "Email already subscribed")
	case errors.Is(err, ingest.ErrUnknownCountry):
		utils.WriteError(w, http.StatusBadRequest, "Country not found")
	case errors.Is(err, youtube.ErrChannelNotFound):
		utils.WriteError(w, http.StatusNotFound, "Channel not found on YouTube")
	case errors.Is(err, youtube.ErrQuotaExceeded):
		logger.Warn().Err(err).Msg("youtube quota exhausted")
		utils.WriteError(w, http.StatusServiceUnavailable, "YouTube API quota exceeded, try again later")
	case errors.Is(err, youtube.ErrInvalidAPIKey), errors.Is(err, youtube.ErrNotConfigured):
		logger.Error().Err(err).Msg("youtube API unavailable")
		utils.WriteError(w, http.StatusServiceUnavailable, "YouTube API unavailable")
	default:
		logger.Error().Err(err).Msg("request failed")
		utils.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// cached serves key from the cache when present and fills it from load
// otherwise. Cache failures are logged and never fail the request.
func cached[T any](ctx context.Context, cache store.Cache, logger zerolog.Logger, key string, load func(context.Context) (T, error)) (T, error) {
	var v T
	if cache != nil {
		hit, err := cache.GetJSON(ctx, key, &v)
		if err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		if hit {
			return v, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	if cache != nil {
		if err := cache.SetJSON(ctx, key, v); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return v, nil
}

func invalidate(ctx context.Context, cache store.Cache, logger zerolog.Logger) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateAll(ctx); err != nil {
		logger.Warn().Err(err).Msg("cache invalidation failed")
	}
}

func trigger(jobs JobTrigger, logger zerolog.Logger, id string) {
	if jobs == nil {
		return
	}
	if err := jobs.Trigger(id); err != nil {
		logger.Debug().Err(err).Str("job", id).Msg("job not triggered")
	}
}
