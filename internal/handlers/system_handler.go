package handlers

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/grvbrk/toptube_server/internal/scheduler"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/grvbrk/toptube_server/internal/utils"
	"github.com/rs/zerolog"
)

const (
	apiName    = "TopTube World Pro API"
	apiVersion = "1.0.0"
)

var staticPages = []struct {
	path     string
	freq     string
	priority string
}{
	{"", "daily", "1.0"},
	{"/leaderboard", "hourly", "0.9"},
	{"/countries", "daily", "0.9"},
	{"/trending", "hourly", "0.8"},
	{"/blog", "daily", "0.7"},
	{"/about", "monthly", "0.4"},
	{"/contact", "monthly", "0.4"},
	{"/privacy", "yearly", "0.2"},
	{"/terms", "yearly", "0.2"},
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type SchedulerStatus interface {
	Status(ctx context.Context) (scheduler.Status, error)
}

type SystemHandler struct {
	DB           Pinger
	CountryStore store.CountryStore
	ChannelStore store.ChannelStore
	Scheduler    SchedulerStatus
	SiteURL      string
	Logger       zerolog.Logger
}

func NewSystemHandler(db Pinger, countryStore store.CountryStore, channelStore store.ChannelStore, sched SchedulerStatus, siteURL string, logger zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		DB:           db,
		CountryStore: countryStore,
		ChannelStore: channelStore,
		Scheduler:    sched,
		SiteURL:      siteURL,
		Logger:       logger.With().Str("component", "system").Logger(),
	}
}

func (sh *SystemHandler) HandlerInfo(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"message": apiName, "version": apiVersion})
}

func (sh *SystemHandler) HandlerHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := sh.DB.PingContext(ctx); err != nil {
		sh.Logger.Error().Err(err).Msg("database ping failed")
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.Envelope{"status": "unhealthy", "timestamp": now})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"status": "healthy", "timestamp": now})
}

func (sh *SystemHandler) HandlerSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	st, err := sh.Scheduler.Status(r.Context())
	if err != nil {
		writeError(w, sh.Logger, err, "Scheduler status not found")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"is_running":    st.IsRunning,
		"is_refreshing": st.IsRefreshing,
		"is_ranking":    st.IsRanking,
		"jobs":          st.Jobs,
		"last_runs":     st.LastRuns,
	})
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// HandlerSitemap lists the static pages plus a page per country, per
// channel and per country blog post.
func (sh *SystemHandler) HandlerSitemap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	codes, err := sh.CountryStore.CountryCodes(ctx)
	if err != nil {
		writeError(w, sh.Logger, err, "Sitemap not found")
		return
	}
	channelIDs, err := sh.ChannelStore.ActiveChannelIDs(ctx)
	if err != nil {
		writeError(w, sh.Logger, err, "Sitemap not found")
		return
	}

	today := time.Now().UTC().Format(time.DateOnly)
	set := urlSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]sitemapURL, 0, len(staticPages)+2*len(codes)+len(channelIDs)),
	}
	add := func(path, freq, priority string) {
		set.URLs = append(set.URLs, sitemapURL{Loc: sh.SiteURL + path, LastMod: today, ChangeFreq: freq, Priority: priority})
	}

	for _, p := range staticPages {
		add(p.path, p.freq, p.priority)
	}
	for _, code := range codes {
		add("/country/"+code, "daily", "0.8")
	}
	for _, code := range codes {
		add("/blog/country/"+code, "weekly", "0.6")
	}
	for _, id := range channelIDs {
		add("/channel/"+id, "daily", "0.7")
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		writeError(w, sh.Logger, err, "Sitemap not found")
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return
	}
	_, _ = w.Write(out)
}

func (sh *SystemHandler) HandlerRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "User-agent: *\nAllow: /\nDisallow: /admin\nDisallow: /api/admin\n\nSitemap: %s/sitemap.xml\n", sh.SiteURL)
}
