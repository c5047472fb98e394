package handlers

import (
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
	detailHistoryDays = 30
	detailTopVideos   = 5
	minCompare        = 2
	maxCompare        = 4
)

type ChannelHandler struct {
	ChannelStore store.ChannelStore
	Growth       GrowthReader
	Rankings     RankReader
	Videos       VideoSource
	Ingest       ChannelIngester
	Jobs         JobTrigger
	Cache        store.Cache
	Logger       zerolog.Logger
}

func NewChannelHandler(channelStore store.ChannelStore, growth GrowthReader, rankings RankReader, videos VideoSource, ingester ChannelIngester, jobs JobTrigger, cache store.Cache, logger zerolog.Logger) *ChannelHandler {
	return &ChannelHandler{
		ChannelStore: channelStore,
		Growth:       growth,
		Rankings:     rankings,
		Videos:       videos,
		Ingest:       ingester,
		Jobs:         jobs,
		Cache:        cache,
		Logger:       logger.With().Str("component", "channels").Logger(),
	}
}

// HandlerGetChannels lists tracked channels. Search, status and sort are
// applied by the leaderboard engine before the skip/limit window.
func (ch *ChannelHandler) HandlerGetChannels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := utils.QueryInt(r, "limit", 100, 1, 500)
	skip := utils.QueryInt(r, "skip", 0, 0, 100_000)

	countryCode := strings.ToUpper(q.Get("country_code"))
	params := leaderboard.Params{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Sort:   leaderboard.ValidateSortKey(q.Get("sort")),
	}

	channels, _, err := ch.ChannelStore.ListChannels(r.Context(), store.ChannelFilter{CountryCode: countryCode})
	if err != nil {
		writeError(w, ch.Logger, err, "Channels not found")
		return
	}

	filtered := leaderboard.FilterSort(channels, params)
	total := len(filtered)
	start := min(skip, total)
	end := min(start+limit, total)

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"channels": filtered[start:end],
		"total":    total,
		"limit":    limit,
		"skip":     skip,
	})
}

// HandlerGetChannelByID returns a channel with its growth history, top
// videos, rank history and viral prediction. A YouTube failure leaves
// top_videos empty instead of failing the page.
func (ch *ChannelHandler) HandlerGetChannelByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	channel, err := ch.ChannelStore.GetChannel(ctx, id)
	if err != nil {
		writeError(w, ch.Logger, err, "Channel not found")
		return
	}

	history, err := ch.Growth.History(ctx, id, detailHistoryDays)
	if err != nil {
		writeError(w, ch.Logger, err, "Channel not found")
		return
	}

	rankHistory, err := ch.Rankings.RankHistory(ctx, id, detailHistoryDays)
	if err != nil {
		writeError(w, ch.Logger, err, "Channel not found")
		return
	}

	viral, err := ch.Growth.ViralPrediction(ctx, id)
	if err != nil {
		writeError(w, ch.Logger, err, "Channel not found")
		return
	}

	videos, err := ch.Videos.TopVideos(ctx, id, detailTopVideos)
	if err != nil {
		ch.Logger.Warn().Err(err).Str("channel_id", id).Msg("top videos unavailable")
		videos = []models.YouTubeVideo{}
	}

	var rankChange leaderboard.Change
	if channel.CurrentRank != nil {
		rankChange = leaderboard.RankChange(*channel.CurrentRank, channel.PreviousRank)
	} else {
		rankChange = leaderboard.Change{Direction: leaderboard.Unchanged}
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"channel":          channel,
		"rank_change":      rankChange,
		"growth_history":   history,
		"top_videos":       videos,
		"rank_history":     rankHistory,
		"viral_prediction": viral,
	})
}

func (ch *ChannelHandler) HandlerGetRelatedChannels(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := utils.QueryInt(r, "limit", 6, 1, 20)

	channel, err := ch.ChannelStore.GetChannel(r.Context(), id)
	if err != nil {
		writeError(w, ch.Logger, err, "Channel not found")
		return
	}

	related, err := ch.ChannelStore.RelatedChannels(r.Context(), channel.CountryCode, channel.ChannelID, limit)
	if err != nil {
		writeError(w, ch.Logger, err, "Channel not found")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"channel_id":       channel.ChannelID,
		"country_code":     channel.CountryCode,
		"related_channels": related,
	})
}

// HandlerCompareChannels returns 2 to 4 channels in the order requested.
func (ch *ChannelHandler) HandlerCompareChannels(w http.ResponseWriter, r *http.Request) {
	ids := uniqueIDs(utils.SplitCSV(r.URL.Query().Get("ids")))
	if len(ids) < minCompare || len(ids) > maxCompare {
		utils.WriteError(w, http.StatusBadRequest, "Provide between 2 and 4 distinct channel ids")
		return
	}

	found, err := ch.ChannelStore.GetChannels(r.Context(), ids)
	if err != nil {
		writeError(w, ch.Logger, err, "Channel not found")
		return
	}

	byID := make(map[string]models.Channel, len(found))
	for _, c := range found {
		byID[c.ChannelID] = c
	}

	ordered := make([]models.Channel, 0, len(ids))
	var missing []string
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		ordered = append(ordered, c)
	}
	if len(missing) > 0 {
		utils.WriteJSON(w, http.StatusNotFound, utils.Envelope{"error": "Channel not found", "missing": missing})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"channels": ordered})
}

type createChannelRequest struct {
	ChannelID   string `json:"channel_id" validate:"required,max=64"`
	CountryCode string `json:"country_code" validate:"required,len=2,alpha"`
}

// HandlerCreateChannel adds a channel from YouTube and queues a ranking
// update.
func (ch *ChannelHandler) HandlerCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := utils.ReadJSON(w, r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	channel, err := ch.Ingest.AddChannel(r.Context(), strings.TrimSpace(req.ChannelID), req.CountryCode)
	if err != nil {
		writeError(w, ch.Logger, err, "Channel not found")
		return
	}

	invalidate(r.Context(), ch.Cache, ch.Logger)
	trigger(ch.Jobs, ch.Logger, store.JobUpdateRankings)

	utils.WriteJSON(w, http.StatusCreated, utils.Envelope{"message": "Channel added", "channel": channel})
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
