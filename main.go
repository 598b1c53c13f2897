// @title Mock Test API
// @version 1.0
// @description Timed multiple-choice mock tests: question ingestion, exam sessions and results.

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"flag"
	"log"
	"time"

	"mocktest_backend/internal/app"
	"mocktest_backend/internal/config"
	"mocktest_backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "run database migrations and exit")
	migrate := flag.Bool("migrate", false, "run database migrations on start, even in release mode")
	seedAdmin := flag.Bool("seed-admin", false, "create the admin user from admin.username/admin.password")
	flag.Parse()

	cfg, err := config.LoadConfig(app.ConfigDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	if *migrateOnly {
		application.Close(context.Background())
		log.Println("Database migration finished")
		return
	}

	if *seedAdmin {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := application.SeedAdmin(ctx)
		cancel()
		if err != nil {
			logger.Log.Fatal("Failed to seed admin user", zap.Error(err))
		}
	}

	application.Run()
}
