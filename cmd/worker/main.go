// Worker sends the daily telemetry report on TELEMETRY_SCHEDULE until interrupted.
// It applies the embedded migrations on start and, when HEALTH_ADDR is set, serves the gRPC health service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"taiga-telemetry/internal/app"
	"taiga-telemetry/internal/config"
	"taiga-telemetry/internal/db/migrate"
	"taiga-telemetry/internal/health"
	"taiga-telemetry/internal/logging"
	"taiga-telemetry/internal/scheduler"
	"taiga-telemetry/internal/telemetry"
)

// version is set via -ldflags "-X main.version=...".
var version = "dev"

// runTimeout bounds one scheduled report.
const runTimeout = 10 * time.Minute

// stopTimeout is the shutdown budget for each phase; it stays well inside typical orchestrator grace periods.
const stopTimeout = telemetry.ShutdownDrainDuration

func main() {
	logging.Setup(os.Stderr, "info", "console")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("worker: config")
	}
	logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migrate.Run(cfg.DSN(), "up"); err != nil {
		log.Fatal().Err(err).Msg("worker: migrate")
	}

	a, err := app.New(ctx, cfg, version)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: startup")
	}

	if cfg.HealthAddr != "" {
		checker := health.NewChecker(a.DB, health.DefaultInterval)
		go checker.Run(ctx)
		go func() {
			if err := health.Serve(ctx, cfg.HealthAddr, checker); err != nil {
				log.Error().Err(err).Str("addr", cfg.HealthAddr).Msg("worker: health server")
			}
		}()
	}

	sched, err := scheduler.New(cfg.TelemetrySchedule, cfg.Location(), a.Job, runTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: scheduler")
	}
	sched.Start()
	log.Info().
		Str("schedule", cfg.TelemetrySchedule).
		Str("timezone", cfg.Location().String()).
		Bool("enabled", cfg.EnableTelemetry).
		Str("version", version).
		Msg("worker: running")

	<-ctx.Done()
	log.Info().Msg("worker: shutting down...")

	shutdown(sched, a, stopTimeout)
	log.Info().Msg("worker: stopped")
}

type stopper interface {
	Stop(ctx context.Context) error
}

type closer interface {
	Close(ctx context.Context) error
}

// shutdown gives an in-flight run up to budget to finish before the scheduler cancels it,
// then drains the mirrors and releases resources within another budget.
func shutdown(s stopper, c closer, budget time.Duration) {
	stopCtx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		log.Warn().Err(err).Msg("worker: in-flight run cancelled")
	}
	drainCtx, drainCancel := context.WithTimeout(context.Background(), budget)
	defer drainCancel()
	if err := c.Close(drainCtx); err != nil {
		log.Warn().Err(err).Msg("worker: close")
	}
}
