package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/grvbrk/toptube_server/internal/app"
)

func SetupRoutes(app *app.Application) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httprate.LimitAll(200, time.Minute))
	r.Use(app.Metrics.Middleware)
	r.Use(app.MiddlewareHandler.RequestLogger)
	r.Use(app.MiddlewareHandler.Security)

	r.Method("GET", "/metrics", app.Metrics.Handler())
	r.Get("/sitemap.xml", app.SystemHandler.HandlerSitemap)
	r.Get("/robots.txt", app.SystemHandler.HandlerRobots)

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitAll(100, time.Minute))
		r.Use(app.MiddlewareHandler.Cors)

		r.Route("/auth/admin", func(r chi.Router) {
			r.Get("/google/login", app.AdminOauth.Login)
			r.Get("/google/callback", app.AdminOauth.Callback)
			r.Get("/google/logout", app.AdminOauth.Logout)
			r.Get("/", app.AdminOauth.AuthAdmin)
		})

		// public routes
		r.Get("/", app.SystemHandler.HandlerInfo)
		r.Get("/health", app.SystemHandler.HandlerHealth)
		r.Get("/sitemap.xml", app.SystemHandler.HandlerSitemap)
		r.Get("/robots.txt", app.SystemHandler.HandlerRobots)
		r.Get("/scheduler/status", app.SystemHandler.HandlerSchedulerStatus)

		r.Route("/countries", func(r chi.Router) {
			r.Get("/", app.CountryHandler.HandlerGetCountries)
			r.Get("/{code}", app.CountryHandler.HandlerGetCountry)
			r.Get("/{code}/neighbors", app.CountryHandler.HandlerGetNeighbors)
			r.With(app.MiddlewareHandler.AuthenticateAdmin).Post("/", app.CountryHandler.HandlerCreateCountry)
		})

		r.Route("/channels", func(r chi.Router) {
			r.Get("/", app.ChannelHandler.HandlerGetChannels)
			r.Get("/{id}", app.ChannelHandler.HandlerGetChannelByID)
			r.Get("/{id}/related", app.ChannelHandler.HandlerGetRelatedChannels)
			r.With(app.MiddlewareHandler.AuthenticateAdmin).Post("/", app.ChannelHandler.HandlerCreateChannel)
		})
		r.Get("/compare", app.ChannelHandler.HandlerCompareChannels)

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/global", app.LeaderboardHandler.HandlerGetGlobalLeaderboard)
			r.Get("/country/{code}", app.LeaderboardHandler.HandlerGetCountryLeaderboard)
			r.Get("/fastest-growing", app.LeaderboardHandler.HandlerGetFastestGrowing)
			r.Get("/biggest-gainers", app.LeaderboardHandler.HandlerGetBiggestGainers)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/map-data", app.StatsHandler.HandlerGetMapData)
			r.Get("/channel/{id}/history", app.StatsHandler.HandlerGetChannelHistory)
			r.Get("/ranking-changes", app.StatsHandler.HandlerGetRankingChanges)
		})
		r.Get("/predictions/overtake/{id}/{target}", app.StatsHandler.HandlerPredictOvertake)
		r.Get("/search/channels", app.SearchHandler.HandlerSearchChannels)

		r.Route("/blog", func(r chi.Router) {
			r.Get("/posts", app.BlogHandler.HandlerGetPosts)
			r.Get("/posts/{slug}", app.BlogHandler.HandlerGetPostBySlug)
			r.Get("/countries", app.BlogHandler.HandlerGetCountryPosts)
			r.Get("/country/{code}", app.BlogHandler.HandlerGetCountryPost)
		})

		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(20, time.Minute))
			r.Post("/contact", app.ContactHandler.HandlerContact)
			r.Post("/newsletter/subscribe", app.ContactHandler.HandlerSubscribeNewsletter)
		})

		// visitor routes
		r.Route("/me", func(r chi.Router) {
			r.Use(app.MiddlewareHandler.Visitor)

			r.Get("/preferences", app.PrefsHandler.HandlerGetPreferences)
			r.Get("/preferences/events", app.PrefsHandler.HandlerPreferenceEvents)
			r.Put("/theme", app.PrefsHandler.HandlerSetTheme)
			r.Post("/theme/toggle", app.PrefsHandler.HandlerToggleTheme)
			r.Post("/favorites", app.PrefsHandler.HandlerAddFavorite)
			r.Delete("/favorites/{id}", app.PrefsHandler.HandlerRemoveFavorite)
			r.Post("/favorites/{id}/toggle", app.PrefsHandler.HandlerToggleFavorite)
		})

		// admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(app.MiddlewareHandler.AuthenticateAdmin)

			r.Get("/stats", app.AdminHandler.HandlerGetStats)
			r.Post("/seed", app.AdminHandler.HandlerSeed)
			r.Post("/refresh-all", app.AdminHandler.HandlerRefreshAll)
			r.Post("/refresh-channel/{id}", app.AdminHandler.HandlerRefreshChannel)
			r.Delete("/channel/{id}", app.AdminHandler.HandlerDeleteChannel)
			r.Post("/import-channels", app.AdminHandler.HandlerImportChannels)
			r.Post("/scheduler/run/{job}", app.AdminHandler.HandlerRunJob)
			r.Get("/contact-messages", app.AdminHandler.HandlerGetContactMessages)
			r.Get("/newsletter-subscribers", app.AdminHandler.HandlerGetNewsletterSubscribers)

			r.Route("/blog", func(r chi.Router) {
				r.Post("/posts", app.BlogHandler.HandlerCreatePost)
				r.Put("/posts/{slug}", app.BlogHandler.HandlerUpdatePost)
				r.Delete("/posts/{slug}", app.BlogHandler.HandlerDeletePost)
				r.Post("/generate-daily", app.BlogHandler.HandlerGenerateDaily)
			})
		})
	})

	return r
}
