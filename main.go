package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grvbrk/toptube_server/internal/app"
	"github.com/grvbrk/toptube_server/internal/routes"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := app.NewApplication(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}
	defer app.Close()

	r := routes.SetupRoutes(app)

	server := &http.Server{
		Addr:         ":" + app.Config.Port,
		Handler:      r,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	if app.Config.SchedulerEnabled {
		app.Scheduler.Start(ctx)
	}

	go func() {
		app.Logger.Info().Str("port", app.Config.Port).Str("env", app.Config.Environment).Msg("server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error().Err(err).Msg("error starting server")
			stop()
		}
	}()

	<-ctx.Done()
	app.Logger.Info().Msg("shutting down")

	app.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
