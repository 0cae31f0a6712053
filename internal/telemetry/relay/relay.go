// Package relay consumes the Kafka mirror topic and forwards each tracked message to another sink (Loki).
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"taiga-telemetry/internal/telemetry"
	"taiga-telemetry/internal/telemetry/domain"
)

// pushTimeout bounds a single forward.
const pushTimeout = 10 * time.Second

// MessageReader is the subset of *kafka.Reader used by Run.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// NewKafkaReader returns a consumer-group reader on topic. Offsets are committed every second.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Stats counts what Run did.
type Stats struct {
	Forwarded int
	Skipped   int
	Failed    int
}

// Run reads messages until ctx is done and forwards each decoded message to sink.
// Undecodable messages are skipped and forward failures logged; neither stops the loop.
// It returns nil when ctx is cancelled and the reader's error when it fails for any other reason
// (for example io.EOF after the reader is closed).
func Run(ctx context.Context, reader MessageReader, sink telemetry.EventEmitter) (Stats, error) {
	var stats Stats
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return stats, nil
			}
			return stats, err
		}
		var msg domain.TrackMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			stats.Skipped++
			log.Warn().Err(err).Int64("offset", m.Offset).Int("partition", m.Partition).Msg("relay: undecodable message skipped")
			continue
		}
		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		err = sink.Emit(pushCtx, &msg)
		cancel()
		if err != nil {
			stats.Failed++
			log.Warn().Err(err).Str("message_id", msg.MessageID).Msg("relay: forward failed")
			continue
		}
		stats.Forwarded++
		log.Debug().Str("message_id", msg.MessageID).Str("instance_id", msg.UserID).Msg("relay: forwarded")
	}
}
