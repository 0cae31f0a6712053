package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"taiga-telemetry/internal/telemetry/domain"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &domain.TrackMessage{UserID: "abc123"}); err != nil {
		t.Errorf("noop Emit(ctx, msg): %v", err)
	}
}

func TestNewEventEmitterWithLogger_Nil(t *testing.T) {
	if _, ok := NewEventEmitterWithLogger(nil).(noopEmitter); !ok {
		t.Error("nil logger should yield the no-op emitter")
	}
}

func TestEmit_NilMessage_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the Records passed to Emit for assertion.
type recordCapture struct {
	recs []otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.recs = append(r.recs, rec)
}

func attrs(rec otellog.Record) map[string]otellog.Value {
	out := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value
		return true
	})
	return out
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	ts := time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC)
	msg := &domain.TrackMessage{
		MessageID: "msg-1",
		UserID:    "abc123",
		Event:     domain.EventDailyTelemetry,
		Properties: domain.Properties{
			"tt_projects":             int64(3),
			"tt_avg_tags_project":     0.75,
			"tt_percent_uss_assigned": nil,
			"sys_email_enabled":       true,
			"sys_version":             "1.0.0",
		},
		Timestamp: ts,
	}
	if err := em.Emit(context.Background(), msg); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(cap.recs) != 1 {
		t.Fatalf("records = %d, want 1", len(cap.recs))
	}
	rec := cap.recs[0]

	if got := rec.Body().AsString(); got != domain.EventDailyTelemetry {
		t.Errorf("body = %q, want %q", got, domain.EventDailyTelemetry)
	}
	if !rec.Timestamp().Equal(ts) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), ts)
	}
	if rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want info", rec.Severity())
	}

	a := attrs(rec)
	if a["instance_id"].AsString() != "abc123" || a["message_id"].AsString() != "msg-1" {
		t.Errorf("identifier attributes = %v", a)
	}
	if a["tt_projects"].AsInt64() != 3 {
		t.Errorf("tt_projects = %v", a["tt_projects"])
	}
	if a["tt_avg_tags_project"].AsFloat64() != 0.75 {
		t.Errorf("tt_avg_tags_project = %v", a["tt_avg_tags_project"])
	}
	if !a["sys_email_enabled"].AsBool() || a["sys_version"].AsString() != "1.0.0" {
		t.Errorf("system attributes = %v", a)
	}
	if _, ok := a["tt_percent_uss_assigned"]; ok {
		t.Error("nil property should be skipped")
	}
	if rec.AttributesLen() != 6 {
		t.Errorf("attributes = %d, want 6", rec.AttributesLen())
	}
}

func TestEmit_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	before := time.Now().UTC()
	if err := em.Emit(context.Background(), &domain.TrackMessage{UserID: "abc123"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()
	ts := cap.recs[0].Timestamp()
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp %v not in [%v, %v]", ts, before, after)
	}
}

func TestEmit_EmptyFields(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	if err := em.Emit(context.Background(), &domain.TrackMessage{}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.recs[0]
	if !rec.Body().Empty() {
		t.Error("body should be empty when the event name is empty")
	}
	if rec.AttributesLen() != 0 {
		t.Errorf("attributes = %d, want 0", rec.AttributesLen())
	}
}

func TestAttribute_Types(t *testing.T) {
	testCases := []struct {
		name string
		v    any
		kind otellog.Kind
		ok   bool
	}{
		{"nil", nil, otellog.KindEmpty, false},
		{"int64", int64(1), otellog.KindInt64, true},
		{"int", 2, otellog.KindInt64, true},
		{"float64", 1.5, otellog.KindFloat64, true},
		{"bool", true, otellog.KindBool, true},
		{"string", "x", otellog.KindString, true},
		{"other", []int{1}, otellog.KindString, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kv, ok := attribute("k", tc.v)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && kv.Value.Kind() != tc.kind {
				t.Errorf("kind = %v, want %v", kv.Value.Kind(), tc.kind)
			}
		})
	}
}
