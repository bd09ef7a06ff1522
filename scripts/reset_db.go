package main

import (
	"context"
	"flag"
	"time"

	"github.com/elys-network/yieldbalancer/internal/config"
	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/state"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	startCycle := flag.Int("start-cycle", 0, "cycle counter value after the reset")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Initialize(cfg.LogLevel, cfg.LogFormat)
	log.Info().Msg("Starting database reset script...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("user", cfg.Database.User).
		Str("dbname", cfg.Database.DBName).
		Msg("Connecting to database")

	store, err := state.Open(ctx, state.DBConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer store.Close()

	log.Info().Msg("Connected to database. Dropping and recreating all tables...")
	if err := store.ResetSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to reset database schema")
	}

	if *startCycle > 0 {
		if err := store.ResetCycleNumber(ctx, *startCycle); err != nil {
			log.Fatal().Err(err).Msg("Failed to set cycle counter")
		}
		log.Info().Int("cycle", *startCycle).Msg("Cycle counter set")
	}

	log.Info().Msg("Database reset complete!")
}
