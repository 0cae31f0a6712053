package commands

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"taiga-telemetry/internal/telemetry/loki"
	"taiga-telemetry/internal/telemetry/relay"
)

func (e *env) relayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Forward the Kafka mirror topic into Loki",
		Long: `Consume TELEMETRY_KAFKA_TOPIC as consumer group KAFKA_GROUP_ID and push every
message to LOKI_URL. Runs until interrupted.

Use this when the worker cannot reach Loki directly but can reach Kafka.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.config()
			if err != nil {
				return err
			}
			brokers := cfg.KafkaBrokersList()
			if len(brokers) == 0 {
				return errors.New("relay: KAFKA_BROKERS is required")
			}
			sink := loki.NewClient(cfg.LokiURL, nil)
			if sink == nil {
				return errors.New("relay: LOKI_URL is required")
			}

			reader := relay.NewKafkaReader(brokers, cfg.TelemetryKafkaTopic, cfg.KafkaGroupID)
			defer reader.Close()

			log.Info().
				Str("topic", cfg.TelemetryKafkaTopic).
				Str("group", cfg.KafkaGroupID).
				Str("loki", cfg.LokiURL).
				Msg("relay: consuming")
			stats, err := relay.Run(cmd.Context(), reader, sink)
			log.Info().
				Int("forwarded", stats.Forwarded).
				Int("skipped", stats.Skipped).
				Int("failed", stats.Failed).
				Msg("relay: stopped")
			return err
		},
	}
}
