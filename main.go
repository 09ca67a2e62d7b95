package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tradebook/m/internal/api"
	"tradebook/m/internal/config"
	"tradebook/m/internal/database"
	"tradebook/m/internal/ledger"
	"tradebook/m/internal/migrations"
	"tradebook/m/internal/seed"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()

	migrations.Run(db)
	if cfg.OpeningLedger != "" {
		seed.LoadOpeningLedger(db, cfg.OpeningLedger)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	svc := ledger.NewService(ledger.NewSQLStore(db), logger)
	handler := api.New(db, svc, cfg.Secret, logger)

	log.Printf("Tradebook ledger server starting on :%s", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
