package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/miru4128/new-gaaytri/internal/api"
	"github.com/miru4128/new-gaaytri/internal/config"
	"github.com/miru4128/new-gaaytri/internal/database"
	"github.com/miru4128/new-gaaytri/internal/media"
	"github.com/miru4128/new-gaaytri/internal/migrations"
	"github.com/miru4128/new-gaaytri/internal/seed"
	"github.com/miru4128/new-gaaytri/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.Must(logger.New())
	defer log.Sync()

	cfg := config.Load(log)

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	seed.LoadBreeds(db, cfg.BreedCatalog, logger.Named(log, "seed"))

	store, err := media.NewStore(cfg.MediaDir)
	if err != nil {
		log.Fatal("failed to prepare media directory", zap.Error(err))
	}

	handler := api.New(db, cfg.Secret, store, logger.Named(log, "api"))

	log.Info("Gaayatri farm server starting", zap.String("port", cfg.HTTPPort))
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
