// migrate applies the service's embedded SQL migrations; run with go run ./cmd/migrate [-direction down].
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"taiga-telemetry/internal/config"
	"taiga-telemetry/internal/db/migrate"
	"taiga-telemetry/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	logging.Setup(os.Stderr, "info", "console")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("migrate: config")
	}
	logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if err := migrate.Run(cfg.DSN(), *direction); err != nil {
		log.Fatal().Err(err).Str("direction", *direction).Msg("migrate: failed")
	}
	log.Info().Str("direction", *direction).Str("table", migrate.MigrationsTable).Msg("migrate: done")
}
