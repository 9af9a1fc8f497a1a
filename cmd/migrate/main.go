package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/careline/callcenter-booking/internal/config"
	"github.com/careline/callcenter-booking/internal/db"
	"github.com/careline/callcenter-booking/internal/logging"
)

// Usage: migrate [up|down|version]. Defaults to up.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("migrate", cfg.Env)

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		if err := db.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatal().Err(err).Msg("migrate up failed")
		}
	case "down":
		if err := db.MigrateDown(cfg.PostgresDSN); err != nil {
			log.Fatal().Err(err).Msg("migrate down failed")
		}
		log.Info().Msg("rolled back one migration")
	case "version":
		version, dirty, err := db.MigrationVersion(cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("read version failed")
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
	default:
		log.Fatal().Str("command", command).Msg("unknown command, expected up, down or version")
	}
}
