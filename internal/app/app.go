package app

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/grvbrk/toptube_server/internal/auth"
	"github.com/grvbrk/toptube_server/internal/blog"
	"github.com/grvbrk/toptube_server/internal/config"
	"github.com/grvbrk/toptube_server/internal/growth"
	"github.com/grvbrk/toptube_server/internal/handlers"
	"github.com/grvbrk/toptube_server/internal/ingest"
	"github.com/grvbrk/toptube_server/internal/logging"
	"github.com/grvbrk/toptube_server/internal/metrics"
	"github.com/grvbrk/toptube_server/internal/middlewares"
	"github.com/grvbrk/toptube_server/internal/prefs"
	"github.com/grvbrk/toptube_server/internal/ranking"
	"github.com/grvbrk/toptube_server/internal/scheduler"
	"github.com/grvbrk/toptube_server/internal/seed"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/grvbrk/toptube_server/internal/store/admin"
	"github.com/grvbrk/toptube_server/internal/store/analytics"
	"github.com/grvbrk/toptube_server/internal/youtube"
	"github.com/grvbrk/toptube_server/migrations"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const sessionMaxAge = 86400 * 7

type Application struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	Scheduler *scheduler.Scheduler

	db    *sql.DB
	redis *redis.Client

	AdminOauth         *auth.AdminGoogleOauth
	MiddlewareHandler  *middlewares.MiddlewareHandler
	SystemHandler      *handlers.SystemHandler
	CountryHandler     *handlers.CountryHandler
	ChannelHandler     *handlers.ChannelHandler
	LeaderboardHandler *handlers.LeaderboardHandler
	StatsHandler       *handlers.StatsHandler
	SearchHandler      *handlers.SearchHandler
	BlogHandler        *handlers.BlogHandler
	ContactHandler     *handlers.ContactHandler
	PrefsHandler       *handlers.PrefsHandler
	AdminHandler       *handlers.AdminHandler
}

// sessionKeys derives the cookie signing and encryption keys. Without a
// configured secret the keys are random and sessions end on restart.
func sessionKeys(secret, purpose string) ([]byte, []byte) {
	if secret == "" {
		return securecookie.GenerateRandomKey(64), securecookie.GenerateRandomKey(32)
	}
	hash := sha256.Sum256([]byte(purpose + ":hash:" + secret))
	block := sha256.Sum256([]byte(purpose + ":block:" + secret))
	return hash[:], block[:]
}

func newCookieStore(cfg *config.Config, purpose string) *sessions.CookieStore {
	hashKey, blockKey := sessionKeys(cfg.SessionKey, purpose)
	cs := sessions.NewCookieStore(hashKey, blockKey)

	opts := &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.IsProduction() {
		opts.Secure = true
		opts.SameSite = http.SameSiteNoneMode
	}
	cs.Options = opts
	return cs
}

func NewApplication(ctx context.Context) (*Application, error) {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, "toptube-api")
	m := metrics.New()

	pgDB, err := store.ConnectPGDB(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error().Err(err).Msg("error connecting to postgres")
		return nil, err
	}

	if err := store.MigrateFS(pgDB, migrations.FS, "db"); err != nil {
		logger.Error().Err(err).Msg("postgres migration failed")
		return nil, err
	}
	logger.Info().Msg("database migrated")

	var statsStore store.StatsStore = store.NewPostgresStatsStore(pgDB)
	var series handlers.DailySeriesReader
	if cfg.ClickhouseURL != "" {
		chCfg := store.ClickhouseConfig{
			URL:           cfg.ClickhouseURL,
			Database:      cfg.ClickhouseDatabase,
			Username:      cfg.ClickhouseUsername,
			Password:      cfg.ClickhousePassword,
			MigrationsDir: "migrations/analytics",
		}
		conn, err := store.ConnectClickhouse(chCfg, logger)
		if err != nil {
			logger.Error().Err(err).Msg("error connecting to clickhouse")
			return nil, err
		}
		if err := store.MigrateClickhouse(chCfg); err != nil {
			logger.Error().Err(err).Msg("clickhouse migration failed")
			return nil, err
		}
		chStats := analytics.NewClickhouseStatsStore(conn)
		statsStore = store.NewMirroredStatsStore(statsStore, chStats, logger)
		series = chStats
	} else {
		logger.Info().Msg("clickhouse: no URL configured, analytics disabled")
	}

	rdb := store.ConnectRedis(cfg.RedisURL, logger)
	cache := store.NewRedisCache(rdb, cfg.CacheTTL, m)

	var prefStore prefs.Store
	if rdb != nil {
		prefStore = prefs.NewRedisStore(rdb, logger)
	} else {
		prefStore = prefs.NewMemoryStore()
	}

	yt, err := youtube.NewClient(ctx, cfg.YouTubeAPIKey, logger)
	if err != nil {
		return nil, err
	}
	yt.SetRecorder(m)

	channelStore := store.NewPostgresChannelStore(pgDB)
	countryStore := store.NewPostgresCountryStore(pgDB)
	rankHistoryStore := store.NewPostgresRankHistoryStore(pgDB)
	blogStore := store.NewPostgresBlogStore(pgDB)
	contactStore := store.NewPostgresContactStore(pgDB)
	statusStore := store.NewPostgresStatusStore(pgDB)
	adminStore := admin.NewPostgresAdminStore(pgDB)

	ingester := ingest.NewIngester(channelStore, countryStore, statsStore, yt, logger)
	analyzer := growth.NewAnalyzer(statsStore, channelStore, logger)
	rankings := ranking.NewService(channelStore, countryStore, rankHistoryStore, logger)
	generator := blog.NewGenerator(channelStore, countryStore, blogStore, logger)
	seeder := seed.NewSeeder(countryStore, ingester, logger)

	sched := scheduler.New(statusStore, cache, logger)
	sched.SetRecorder(m)
	scheduler.RegisterJobs(sched, scheduler.Deps{
		Channels: ingester,
		Rankings: rankings,
		Growth:   analyzer,
		Blog:     generator,
	})

	adminSessionStore := newCookieStore(cfg, "admin")
	visitorSessionStore := newCookieStore(cfg, "visitor")

	adminOauth := auth.NewAdminGoogleOauth(logger, adminSessionStore, auth.AdminOAuthConfig{
		ClientID:     cfg.GoogleClientIDAdmin,
		ClientSecret: cfg.GoogleClientSecretAdmin,
		BackendURL:   cfg.BackendURL,
		FrontendURL:  cfg.AdminFrontendURL,
		AdminEmails:  cfg.AdminEmails,
	})

	app := &Application{
		Config:    cfg,
		Logger:    logger,
		Metrics:   m,
		Scheduler: sched,
		db:        pgDB,
		redis:     rdb,

		AdminOauth:         adminOauth,
		MiddlewareHandler:  middlewares.NewMiddlewareHandler(logger, adminSessionStore, visitorSessionStore, cfg.AllowedOrigins, cfg.AdminEmails),
		SystemHandler:      handlers.NewSystemHandler(pgDB, countryStore, channelStore, sched, cfg.SiteURL, logger),
		CountryHandler:     handlers.NewCountryHandler(countryStore, rankings, cache, logger),
		ChannelHandler:     handlers.NewChannelHandler(channelStore, analyzer, rankings, yt, ingester, sched, cache, logger),
		LeaderboardHandler: handlers.NewLeaderboardHandler(countryStore, rankings, cache, logger),
		StatsHandler:       handlers.NewStatsHandler(countryStore, analyzer, rankings, series, cache, logger),
		SearchHandler:      handlers.NewSearchHandler(yt, logger),
		BlogHandler:        handlers.NewBlogHandler(blogStore, generator, logger),
		ContactHandler:     handlers.NewContactHandler(contactStore, logger),
		PrefsHandler:       handlers.NewPrefsHandler(prefStore, channelStore, logger),
		AdminHandler:       handlers.NewAdminHandler(adminStore, channelStore, ingester, seeder, sched, cache, logger),
	}

	return app, nil
}

// Close releases the database and Redis connections.
func (a *Application) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("error closing redis")
		}
	}
	if err := a.db.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("error closing postgres")
	}
}
