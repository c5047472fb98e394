package handlers

import (
	"net/http"
	"strings"

	"github.com/grvbrk/toptube_server/internal/utils"
	"github.com/rs/zerolog"
)

type SearchHandler struct {
	YouTube ChannelSearcher
	Logger  zerolog.Logger
}

func NewSearchHandler(yt ChannelSearcher, logger zerolog.Logger) *SearchHandler {
	return &SearchHandler{
		YouTube: yt,
		Logger:  logger.With().Str("component", "search").Logger(),
	}
}

// HandlerSearchChannels searches YouTube for channels to add.
func (sh *SearchHandler) HandlerSearchChannels(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		utils.WriteError(w, http.StatusBadRequest, "query is required")
		return
	}
	region := strings.ToUpper(r.URL.Query().Get("region_code"))
	maxResults := utils.QueryInt(r, "max_results", 10, 1, 25)

	results, err := sh.YouTube.SearchChannels(r.Context(), query, region, int64(maxResults))
	if err != nil {
		writeError(w, sh.Logger, err, "No channels found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"results": results})
}
