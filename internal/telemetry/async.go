package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"taiga-telemetry/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long shutdown should wait for in-flight mirror emits before
// closing the sinks and OTel providers. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout + time.Second

// EmitAsync runs sink.Emit in a goroutine with a short timeout so the caller is not blocked.
// Errors are logged with the sink name and otherwise ignored.
//
// A nil emitter or msg returns immediately without starting a goroutine. When wg is not nil
// it is incremented before the goroutine starts and released when it ends.
// The goroutine uses context.Background() so cancelling the caller does not abort the emit.
func EmitAsync(wg *sync.WaitGroup, sink Sink, msg *domain.TrackMessage) {
	if sink.Emitter == nil || msg == nil {
		return
	}
	if wg != nil {
		wg.Add(1)
	}
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := sink.Emitter.Emit(emitCtx, msg); err != nil {
			log.Warn().Err(err).Str("sink", sink.Name).Str("message_id", msg.MessageID).Msg("telemetry: mirror emit failed")
			return
		}
		log.Debug().Str("sink", sink.Name).Str("message_id", msg.MessageID).Msg("telemetry: mirrored")
	}()
}
