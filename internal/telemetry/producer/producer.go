// Package producer defines the interface for mirroring tracked messages to a broker (e.g. Kafka).
package producer

import (
	"context"

	"taiga-telemetry/internal/telemetry/domain"
)

// Producer writes tracked messages to a broker. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit writes a single message. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, msg *domain.TrackMessage) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
