package telemetry

import (
	"context"

	"taiga-telemetry/internal/telemetry/domain"
)

// EventEmitter delivers a tracked message to one destination.
type EventEmitter interface {
	Emit(ctx context.Context, msg *domain.TrackMessage) error
}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(ctx context.Context, msg *domain.TrackMessage) error

func (f EmitterFunc) Emit(ctx context.Context, msg *domain.TrackMessage) error { return f(ctx, msg) }

// Sink is a named mirror destination. Name is used in logs only.
type Sink struct {
	Name    string
	Emitter EventEmitter
}
