package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"lorekeep/internal/adapter/repo"
	"lorekeep/internal/cache"
	"lorekeep/internal/domain"
	"lorekeep/internal/generation"
	"lorekeep/internal/http/handlers"
	"lorekeep/internal/http/httpapi"
	"lorekeep/internal/infra"
	"lorekeep/internal/jobs"
	"lorekeep/internal/providers/genai"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	jobStore := repo.NewJobRepository(dbpool)
	userRepo := repo.NewUserRepository(dbpool)
	worldRepo := repo.NewWorldRepository(dbpool)
	assetRepo := repo.NewAssetRepository(dbpool)

	var jobCache cache.JobSnapshotCache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure redis")
		}
		if err := rc.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, continuing without job cache")
		} else {
			jobCache = rc
		}
	}

	registry := jobs.NewRegistry(jobs.Options{
		Concurrency: cfg.JobWorkerConcurrency,
		EventBuffer: cfg.EventBufferSize,
		Store:       jobStore,
		Logger:      logger,
	})

	backend, err := genai.NewClient(genai.Options{
		APIKey:  cfg.ImageBackendAPIKey,
		BaseURL: cfg.ImageBackendURL,
		Model:   cfg.ImageBackendModel,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure image backend")
	}
	portraits := generation.NewPortraitWorker(backend, assetRepo, logger)
	registry.RegisterWorker(domain.JobTypeAssetPortraitGeneration, portraits.Work)
	registry.RegisterWorker(domain.JobTypeAssetTokenGeneration, portraits.Work)

	app := &handlers.App{
		Logger:    logger,
		Registry:  registry,
		Users:     userRepo,
		Worlds:    worldRepo,
		Assets:    assetRepo,
		Cache:     jobCache,
		CacheTTL:  cfg.JobCacheTTL,
		JWTSecret: cfg.JWTSecret,
	}

	router := httpapi.NewRouter(cfg, app, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
