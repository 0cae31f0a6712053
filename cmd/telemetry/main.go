// telemetry runs one-off telemetry operations: send a report now, print it, show the instance id
// or the resolved settings, or relay the Kafka mirror into Loki.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"taiga-telemetry/cmd/telemetry/commands"
	"taiga-telemetry/internal/logging"
)

// Version information (set via ldflags during build)
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	logging.Setup(os.Stderr, os.Getenv("LOG_LEVEL"), "console")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, Version, Commit); err != nil {
		log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
