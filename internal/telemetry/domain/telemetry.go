package domain

import (
	"maps"
	"time"
)

// EventDailyTelemetry is the event name every scheduled report is tracked under.
const EventDailyTelemetry = "Daily telemetry"

// InstanceTelemetry is the single row identifying this installation to the analytics collector.
// The first row (lowest ID) wins; it is never updated.
type InstanceTelemetry struct {
	ID         int64
	InstanceID string
	CreatedAt  time.Time
}

// Properties is the flat metric record attached to a tracked event.
// Values are int64 counts, float64 averages and percentages (nil when undefined), or strings and bools for system data.
type Properties map[string]any

// Merge returns a new map holding p and then each of others; later keys win.
func (p Properties) Merge(others ...Properties) Properties {
	out := make(Properties, len(p))
	maps.Copy(out, p)
	for _, o := range others {
		maps.Copy(out, o)
	}
	return out
}

// TrackMessage is one analytics event: who (the instance), what (the event name), and the properties.
type TrackMessage struct {
	MessageID  string     `json:"messageId"`
	UserID     string     `json:"userId"`
	Event      string     `json:"event"`
	Properties Properties `json:"properties"`
	Timestamp  time.Time  `json:"timestamp"`
}
