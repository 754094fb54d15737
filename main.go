// @title CTF Backend API
// @version 1.0
// @description Competition state engine: challenges, submissions, hints and leaderboards.

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"log"

	"ctf_backend/internal/app"
	"ctf_backend/internal/config"
	"ctf_backend/pkg/database"
	"ctf_backend/pkg/logger"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "run database migrations and exit")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *migrateOnly {
		db, err := database.InitDB(&cfg.Database)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migration completed")
		return
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	application.Run()
}
