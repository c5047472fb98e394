package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/grvbrk/toptube_server/internal/ingest"
	"github.com/grvbrk/toptube_server/internal/middlewares"
	"github.com/grvbrk/toptube_server/internal/scheduler"
	"github.com/grvbrk/toptube_server/internal/seed"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/grvbrk/toptube_server/internal/store/admin"
	"github.com/grvbrk/toptube_server/internal/utils"
	"github.com/rs/zerolog"
)

const adminListLimit = 100

type Seeder interface {
	Run(ctx context.Context) (seed.Result, error)
}

type AdminHandler struct {
	AdminStore   admin.AdminStore
	ChannelStore store.ChannelStore
	Ingest       ChannelIngester
	Seeder       Seeder
	Jobs         JobTrigger
	Cache        store.Cache
	Logger       zerolog.Logger
}

func NewAdminHandler(adminStore admin.AdminStore, channelStore store.ChannelStore, ingester ChannelIngester, seeder Seeder, jobs JobTrigger, cache store.Cache, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		AdminStore:   adminStore,
		ChannelStore: channelStore,
		Ingest:       ingester,
		Seeder:       seeder,
		Jobs:         jobs,
		Cache:        cache,
		Logger:       logger.With().Str("component", "admin").Logger(),
	}
}

// audit tags admin actions with the acting admin's email.
func (ah *AdminHandler) audit(r *http.Request) *zerolog.Event {
	ev := ah.Logger.Info()
	if a, ok := middlewares.GetAdminFromContext(r); ok {
		ev = ev.Str("admin", a.Email)
	}
	return ev
}

func (ah *AdminHandler) HandlerGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := ah.AdminStore.GetAdminStats(r.Context())
	if err != nil {
		writeError(w, ah.Logger, err, "Stats not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"stats": stats})
}

func (ah *AdminHandler) HandlerSeed(w http.ResponseWriter, r *http.Request) {
	res, err := ah.Seeder.Run(r.Context())
	if err != nil {
		writeError(w, ah.Logger, err, "Seed data not found")
		return
	}

	ah.audit(r).Int("countries", res.CountriesAdded).Int("channels", res.ChannelsAdded).Msg("database seeded")
	if !res.AlreadySeeded {
		invalidate(r.Context(), ah.Cache, ah.Logger)
		trigger(ah.Jobs, ah.Logger, store.JobUpdateRankings)
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"result": res})
}

// startJob queues a scheduler job and answers 202, or 404/409 when the
// job is unknown or already running, 503 once the scheduler stopped.
func (ah *AdminHandler) startJob(w http.ResponseWriter, r *http.Request, id string) {
	err := ah.Jobs.Trigger(id)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		utils.WriteError(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, scheduler.ErrJobRunning):
		utils.WriteError(w, http.StatusConflict, "Job already running")
	case errors.Is(err, scheduler.ErrStopped):
		utils.WriteError(w, http.StatusServiceUnavailable, "Scheduler is shutting down")
	case err != nil:
		writeError(w, ah.Logger, err, "Job not found")
	default:
		ah.audit(r).Str("job", id).Msg("job triggered")
		utils.WriteJSON(w, http.StatusAccepted, utils.Envelope{"message": "Job started", "job": id})
	}
}

func (ah *AdminHandler) HandlerRefreshAll(w http.ResponseWriter, r *http.Request) {
	ah.startJob(w, r, store.JobRefreshChannels)
}

func (ah *AdminHandler) HandlerRunJob(w http.ResponseWriter, r *http.Request) {
	ah.startJob(w, r, chi.URLParam(r, "job"))
}

func (ah *AdminHandler) HandlerRefreshChannel(w http.ResponseWriter, r *http.Request) {
	channel, err := ah.Ingest.RefreshChannel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, ah.Logger, err, "Channel not found")
		return
	}

	invalidate(r.Context(), ah.Cache, ah.Logger)
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"message": "Channel refreshed", "channel": channel})
}

func (ah *AdminHandler) HandlerDeleteChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := ah.ChannelStore.DeleteChannel(r.Context(), id); err != nil {
		writeError(w, ah.Logger, err, "Channel not found")
		return
	}

	ah.audit(r).Str("channel_id", id).Msg("channel deleted")
	invalidate(r.Context(), ah.Cache, ah.Logger)
	trigger(ah.Jobs, ah.Logger, store.JobUpdateRankings)
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"message": "Channel deleted"})
}

type importRequest struct {
	Channels []ingest.ImportItem `json:"channels" validate:"required,min=1,max=500,dive"`
}

func (ah *AdminHandler) HandlerImportChannels(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := utils.ReadJSON(w, r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := ah.Ingest.Import(r.Context(), req.Channels)
	if err != nil {
		writeError(w, ah.Logger, err, "Channel not found")
		return
	}

	ah.audit(r).Int("inserted", res.Inserted).Int("updated", res.Updated).Int("failed", len(res.Failed)).Msg("channels imported")
	if res.Inserted+res.Updated > 0 {
		invalidate(r.Context(), ah.Cache, ah.Logger)
		trigger(ah.Jobs, ah.Logger, store.JobUpdateRankings)
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"result": res})
}

func (ah *AdminHandler) HandlerGetContactMessages(w http.ResponseWriter, r *http.Request) {
	limit := utils.QueryInt(r, "limit", adminListLimit, 1, 500)
	messages, err := ah.AdminStore.ListContactMessages(r.Context(), limit)
	if err != nil {
		writeError(w, ah.Logger, err, "Messages not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"messages": messages, "total": len(messages)})
}

func (ah *AdminHandler) HandlerGetNewsletterSubscribers(w http.ResponseWriter, r *http.Request) {
	limit := utils.QueryInt(r, "limit", adminListLimit, 1, 500)
	subscribers, err := ah.AdminStore.ListNewsletterSubscribers(r.Context(), limit)
	if err != nil {
		writeError(w, ah.Logger, err, "Subscribers not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"subscribers": subscribers, "total": len(subscribers)})
}
