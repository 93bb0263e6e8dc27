package main

import (
	"context"

	"github.com/whisperlink/whisperlink-backend/internal/api"
	"github.com/whisperlink/whisperlink-backend/internal/app"
	"github.com/whisperlink/whisperlink-backend/internal/auth"
	"github.com/whisperlink/whisperlink-backend/internal/cache"
	"github.com/whisperlink/whisperlink-backend/internal/config"
	"github.com/whisperlink/whisperlink-backend/internal/db"
	"github.com/whisperlink/whisperlink-backend/internal/logger"
	"github.com/whisperlink/whisperlink-backend/internal/repository"
	"github.com/whisperlink/whisperlink-backend/internal/service/admirer"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(cfg, database, redisCache, log)
	sessions := auth.NewManager(cfg)

	registrars := []api.Registrar{
		// provider-side account deletion is handled by the identity bridge
		admirer.NewRegistrar(appCtx, repository.NoopAuthDeleter{}),
	}

	engine := api.NewRouter(cfg, sessions, registrars...)

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting http server", "addr", addr)

	if err := api.Serve(cfg, engine); err != nil {
		log.Error("failed to start http server", "err", err)
	}
}
