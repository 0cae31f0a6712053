// seed loads the demo Taiga schema and sample rows into a development database.
// Idempotent: skips the sample rows if any project already exists.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"taiga-telemetry/internal/config"
	"taiga-telemetry/internal/db"
	"taiga-telemetry/internal/db/migrate"
	"taiga-telemetry/internal/devdata"
	"taiga-telemetry/internal/logging"
)

func main() {
	logging.Setup(os.Stderr, "info", "console")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("seed: config")
	}
	logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := migrate.Run(cfg.DSN(), "up"); err != nil {
		log.Fatal().Err(err).Msg("seed: migrate")
	}
	conn, err := db.Open(ctx, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("seed: db")
	}
	defer conn.Close()

	inserted, err := devdata.Apply(ctx, conn)
	if err != nil {
		log.Fatal().Err(err).Msg("seed: apply")
	}
	if !inserted {
		log.Info().Msg("seed: projects already exist, sample rows skipped")
		return
	}
	log.Info().Int("tables", len(devdata.Tables)).Msg("seed: sample data loaded")
}
