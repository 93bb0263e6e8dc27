package main

import (
	"github.com/whisperlink/whisperlink-backend/internal/config"
	"github.com/whisperlink/whisperlink-backend/internal/db"
	"github.com/whisperlink/whisperlink-backend/internal/logger"
)

// Standalone seeding entrypoint for local development.
func main() {
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	if err := db.SeedDemoData(database); err != nil {
		log.Error("failed to seed", "err", err)
		return
	}

	log.Info("seeding complete")
}
