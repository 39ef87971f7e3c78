package main

import (
	"flag"
	"os"

	"github.com/Rrens/chat-memory/internal/config"
	"github.com/Rrens/chat-memory/internal/logger"
	"github.com/Rrens/chat-memory/internal/repository/postgres"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	down := flag.Int("down", 0, "number of migrations to roll back instead of migrating up")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	closer, err := logger.Setup(cfg.Logging, os.Getenv("ENV") == "production")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	defer closer.Close()

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("source", cfg.Database.MigrationsURL).
		Msg("running migrations")

	if *down > 0 {
		if err := postgres.RollbackMigrations(cfg.Database.DSN(), cfg.Database.MigrationsURL, *down); err != nil {
			log.Fatal().Err(err).Msg("rollback failed")
		}
		log.Info().Int("steps", *down).Msg("rollback complete")
		return
	}

	if err := postgres.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsURL); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}
