package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/grvbrk/toptube_server/internal/middlewares"
	"github.com/grvbrk/toptube_server/internal/prefs"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/grvbrk/toptube_server/internal/utils"
	"github.com/rs/zerolog"
)

const heartbeatInterval = 25 * time.Second

type PrefsHandler struct {
	Prefs        prefs.Store
	ChannelStore store.ChannelStore
	Logger       zerolog.Logger
	Heartbeat    time.Duration
}

func NewPrefsHandler(prefStore prefs.Store, channelStore store.ChannelStore, logger zerolog.Logger) *PrefsHandler {
	return &PrefsHandler{
		Prefs:        prefStore,
		ChannelStore: channelStore,
		Logger:       logger.With().Str("component", "prefs").Logger(),
		Heartbeat:    heartbeatInterval,
	}
}

func (ph *PrefsHandler) visitor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middlewares.GetVisitorID(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Visitor session required")
	}
	return id, ok
}

func (ph *PrefsHandler) update(w http.ResponseWriter, r *http.Request, visitor string, fn func(prefs.Preferences) prefs.Preferences) (prefs.Preferences, bool) {
	p, err := prefs.Update(r.Context(), ph.Prefs, visitor, fn)
	if err != nil {
		writeError(w, ph.Logger, err, "Preferences not found")
		return prefs.Preferences{}, false
	}
	return p, true
}

func (ph *PrefsHandler) HandlerGetPreferences(w http.ResponseWriter, r *http.Request) {
	visitor, ok := ph.visitor(w, r)
	if !ok {
		return
	}

	p, err := ph.Prefs.Get(r.Context(), visitor)
	if err != nil {
		writeError(w, ph.Logger, err, "Preferences not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"preferences": p})
}

type themeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=dark light"`
}

func (ph *PrefsHandler) HandlerSetTheme(w http.ResponseWriter, r *http.Request) {
	visitor, ok := ph.visitor(w, r)
	if !ok {
		return
	}

	var req themeRequest
	if err := utils.ReadJSON(w, r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	theme, _ := prefs.ParseTheme(req.Theme)

	p, ok := ph.update(w, r, visitor, func(p prefs.Preferences) prefs.Preferences {
		p.Theme = theme
		return p
	})
	if ok {
		utils.WriteJSON(w, http.StatusOK, utils.Envelope{"preferences": p})
	}
}

func (ph *PrefsHandler) HandlerToggleTheme(w http.ResponseWriter, r *http.Request) {
	visitor, ok := ph.visitor(w, r)
	if !ok {
		return
	}

	p, ok := ph.update(w, r, visitor, func(p prefs.Preferences) prefs.Preferences {
		p.Theme = prefs.ToggleTheme(p.Theme)
		return p
	})
	if ok {
		utils.WriteJSON(w, http.StatusOK, utils.Envelope{"preferences": p})
	}
}

type favoriteRequest struct {
	ChannelID string `json:"channel_id" validate:"required,max=64"`
}

// favorite looks the channel up so the stored favorite carries its
// display fields.
func (ph *PrefsHandler) favorite(w http.ResponseWriter, r *http.Request, channelID string) (prefs.Favorite, bool) {
	c, err := ph.ChannelStore.GetChannel(r.Context(), channelID)
	if err != nil {
		writeError(w, ph.Logger, err, "Channel not found")
		return prefs.Favorite{}, false
	}
	return prefs.FavoriteFrom(*c), true
}

func (ph *PrefsHandler) HandlerAddFavorite(w http.ResponseWriter, r *http.Request) {
	visitor, ok := ph.visitor(w, r)
	if !ok {
		return
	}

	var req favoriteRequest
	if err := utils.ReadJSON(w, r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	fav, ok := ph.favorite(w, r, req.ChannelID)
	if !ok {
		return
	}

	p, ok := ph.update(w, r, visitor, func(p prefs.Preferences) prefs.Preferences {
		p.Favorites = prefs.AddFavorite(p.Favorites, fav)
		return p
	})
	if ok {
		utils.WriteJSON(w, http.StatusOK, utils.Envelope{"preferences": p})
	}
}

func (ph *PrefsHandler) HandlerRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	visitor, ok := ph.visitor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	p, ok := ph.update(w, r, visitor, func(p prefs.Preferences) prefs.Preferences {
		p.Favorites = prefs.RemoveFavorite(p.Favorites, id)
		return p
	})
	if ok {
		utils.WriteJSON(w, http.StatusOK, utils.Envelope{"preferences": p})
	}
}

// HandlerToggleFavorite flips a channel in or out of the favorites. Only
// adding needs the channel to exist.
func (ph *PrefsHandler) HandlerToggleFavorite(w http.ResponseWriter, r *http.Request) {
	visitor, ok := ph.visitor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	current, err := ph.Prefs.Get(r.Context(), visitor)
	if err != nil {
		writeError(w, ph.Logger, err, "Preferences not found")
		return
	}

	fav := prefs.Favorite{ChannelID: id}
	if !prefs.IsFavorite(current.Favorites, id) {
		if fav, ok = ph.favorite(w, r, id); !ok {
			return
		}
	}

	var isFavorite bool
	p, ok := ph.update(w, r, visitor, func(p prefs.Preferences) prefs.Preferences {
		p.Favorites, isFavorite = prefs.ToggleFavorite(p.Favorites, fav)
		return p
	})
	if ok {
		utils.WriteJSON(w, http.StatusOK, utils.Envelope{"preferences": p, "is_favorite": isFavorite})
	}
}

// HandlerPreferenceEvents streams the visitor's preferences as
// server-sent events: the current state first, then every change.
func (ph *PrefsHandler) HandlerPreferenceEvents(w http.ResponseWriter, r *http.Request) {
	visitor, ok := ph.visitor(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	updates, cancel, err := ph.Prefs.Subscribe(ctx, visitor)
	if err != nil {
		writeError(w, ph.Logger, err, "Preferences not found")
		return
	}
	defer cancel()

	current, err := ph.Prefs.Get(ctx, visitor)
	if err != nil {
		writeError(w, ph.Logger, err, "Preferences not found")
		return
	}

	rc := http.NewResponseController(w)
	// The server write timeout would cut the stream.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		ph.Logger.Debug().Err(err).Msg("cannot clear write deadline")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(p prefs.Preferences) error {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: preferences\ndata: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(current); err != nil {
		ph.Logger.Debug().Err(err).Msg("preferences stream closed")
		return
	}

	ticker := time.NewTicker(ph.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-updates:
			if !ok {
				return
			}
			if err := send(p); err != nil {
				ph.Logger.Debug().Err(err).Msg("preferences stream closed")
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
