package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"aimint/internal/bootstrap"
	"aimint/internal/http/handlers"
	httpapi "aimint/internal/http/httpapi"
	"aimint/internal/infra"
	"aimint/internal/session"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
	services, err := bootstrap.Build(connectCtx, cfg, &logger)
	cancelConnect()
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to initialise services")
	}
	defer services.Close()

	// Submissions are not cancelled by shutdown; the registry is drained below.
	sessions := session.NewRegistry(session.Options{
		Runner:      services.Pipeline,
		TTL:         cfg.SessionTTL,
		Ready:       services.Chain.Ready,
		BaseContext: context.WithoutCancel(ctx),
		Logger:      &logger,
	})
	go sessions.Janitor(ctx, time.Minute)

	app := handlers.NewApp(sessions, services.Chain, &logger)
	router := httpapi.NewRouter(cfg, logger, app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: waiting for in-flight submissions")
	sessions.Wait()
	logger.Info().Msg("api: server stopped")
}
