// Command stubapi serves the PsyPortal API in memory for local development:
// accounts, the therapist catalog and session booking.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/api"
	"github.com/psyportal/portal-client/internal/api/backend"
	dbredis "github.com/psyportal/portal-client/internal/infrastructure/db/redis"
	"github.com/psyportal/portal-client/internal/pkg/config"
	"github.com/psyportal/portal-client/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "stubapi"})

	ctx := context.Background()

	// The stats cache is optional; without REDIS_ADDR stats are computed on
	// every request.
	var cache redis.UniversalClient
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		var err error
		rdb, err = dbredis.Connect(ctx, dbredis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, stats cache disabled")
		} else {
			cache = rdb
		}
	}

	dir := backend.NewDirectory(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
	bookings := backend.NewBookings()
	catalog := backend.NewCatalog(cache, bookings, log)
	if cfg.Server.Seed {
		if err := backend.Seed(dir, catalog); err != nil {
			log.Fatal().Err(err).Msg("seed demo data")
		}
		log.Info().Str("password", backend.DemoPassword).Msg("demo therapists seeded")
	}

	e := api.NewRouter(api.Deps{
		Accounts:   dir,
		Tokens:     dir,
		Therapists: catalog,
		Sessions:   bookings,
		Redis:      cache,
		Log:        log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("prefix", api.APIPrefix).Msg("stub api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(log, srv, rdb)
}

func waitForShutdown(log zerolog.Logger, srv *http.Server, rdb *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("redis close error")
		}
	}
	log.Info().Msg("server exited cleanly")
}
