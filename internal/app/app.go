// Package app wires configuration into the telemetry job and its dependencies.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"taiga-telemetry/internal/config"
	"taiga-telemetry/internal/db"
	"taiga-telemetry/internal/telemetry"
	"taiga-telemetry/internal/telemetry/loki"
	otelsetup "taiga-telemetry/internal/telemetry/otel"
	"taiga-telemetry/internal/telemetry/producer"
	"taiga-telemetry/internal/telemetry/repository"
	"taiga-telemetry/internal/telemetry/rudder"
	"taiga-telemetry/internal/telemetry/stats"
)

// ServiceName identifies this service in exported OTel resources.
const ServiceName = "taiga-telemetry"

// App holds the wired telemetry job and everything that must be closed with it.
type App struct {
	Config    *config.Config
	DB        *sql.DB
	Providers *otelsetup.Providers
	Instances *telemetry.InstanceIDs
	Report    *stats.Builder
	Job       *telemetry.Job

	closers []func() error
}

// New opens the database, sets up the global OTel providers and builds the job.
// On error everything opened so far is released.
func New(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	providers, err := otelsetup.NewProviders(ctx, otelsetup.Options{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    ServiceName,
		ServiceVersion: version,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(ctx, cfg.DSN())
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("db: %w", err)
	}

	a := &App{
		Config:    cfg,
		DB:        conn,
		Providers: providers,
		Instances: telemetry.NewInstanceIDs(repository.NewPostgresRepository(conn)),
		Report:    stats.NewBuilder(stats.NewPostgresStore(conn), cfg.Location()),
	}

	var primary telemetry.EventEmitter
	if cfg.EnableTelemetry {
		client, err := rudder.NewClient(cfg.RudderDataPlaneURL, cfg.RudderWriteKey, rudder.WithVersion(version))
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		primary = client
	}

	var mirrors []telemetry.Sink
	mirrors, a.closers = Mirrors(cfg, providers)

	a.Job, err = telemetry.NewJob(telemetry.Options{
		Enabled:   cfg.EnableTelemetry,
		Instances: a.Instances,
		Report:    a.Report,
		System:    telemetry.SystemInfoFromConfig(cfg, version),
		Primary:   primary,
		Mirrors:   mirrors,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// Mirrors returns the best-effort sinks enabled by cfg and the close functions they need.
// The OTel log sink is only added when an OTLP endpoint is configured.
func Mirrors(cfg *config.Config, providers *otelsetup.Providers) ([]telemetry.Sink, []func() error) {
	var (
		sinks   []telemetry.Sink
		closers []func() error
	)
	if p := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.TelemetryKafkaTopic); p != nil {
		sinks = append(sinks, telemetry.Sink{Name: "kafka", Emitter: p})
		closers = append(closers, p.Close)
	}
	if c := loki.NewClient(cfg.LokiURL, nil); c != nil {
		sinks = append(sinks, telemetry.Sink{Name: "loki", Emitter: c})
	}
	if cfg.OTLPEndpoint != "" && providers != nil && providers.LoggerProvider != nil {
		sinks = append(sinks, telemetry.Sink{Name: "otel-log", Emitter: otelsetup.NewEventEmitter(providers.LoggerProvider)})
	}
	for _, s := range sinks {
		log.Debug().Str("sink", s.Name).Msg("app: mirror enabled")
	}
	return sinks, closers
}

// Close waits (bounded by ctx) for in-flight mirror emits, then releases sinks, the database and the OTel providers.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Job != nil {
		if err := a.Job.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("app: mirrors still in flight at shutdown")
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Providers != nil {
		if err := a.Providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
