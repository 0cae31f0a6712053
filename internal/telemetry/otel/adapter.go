package otel

import (
	"context"
	"fmt"
	"sort"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"taiga-telemetry/internal/telemetry"
	"taiga-telemetry/internal/telemetry/domain"
)

// LoggerName is the instrumentation scope of emitted log records.
const LoggerName = "taiga.telemetry"

// recordEmitter is the subset of otellog.Logger used by the adapter.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends messages as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(LoggerName))
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger. A nil logger yields a no-op emitter.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	if logger == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.TrackMessage) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the message to an OTel log record: the event name is the body, identifiers and
// each property become attributes. Undefined (nil) properties are skipped.
func (e *otelEmitter) Emit(ctx context.Context, msg *domain.TrackMessage) error {
	if msg == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetSeverityText("INFO")
	if !msg.Timestamp.IsZero() {
		rec.SetTimestamp(msg.Timestamp)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetObservedTimestamp(time.Now().UTC())
	if msg.Event != "" {
		rec.SetBody(otellog.StringValue(msg.Event))
	}
	if msg.UserID != "" {
		rec.AddAttributes(otellog.String("instance_id", msg.UserID))
	}
	if msg.MessageID != "" {
		rec.AddAttributes(otellog.String("message_id", msg.MessageID))
	}

	keys := make([]string, 0, len(msg.Properties))
	for k := range msg.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if kv, ok := attribute(k, msg.Properties[k]); ok {
			rec.AddAttributes(kv)
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func attribute(key string, v any) (otellog.KeyValue, bool) {
	switch val := v.(type) {
	case nil:
		return otellog.KeyValue{}, false
	case int64:
		return otellog.Int64(key, val), true
	case int:
		return otellog.Int(key, val), true
	case float64:
		return otellog.Float64(key, val), true
	case bool:
		return otellog.Bool(key, val), true
	case string:
		return otellog.String(key, val), true
	default:
		return otellog.String(key, fmt.Sprint(val)), true
	}
}
