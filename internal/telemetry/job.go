// Package telemetry sends the daily usage report of a Taiga installation.
//
// A Job resolves the instance id, builds the aggregate report, sends it once to the
// primary collector and mirrors it, best-effort, to any configured secondary sinks.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"taiga-telemetry/internal/telemetry/domain"
)

const instrumentationName = "taiga-telemetry/internal/telemetry"

// ErrNoPrimary is returned by NewJob when telemetry is enabled without a primary sink.
var ErrNoPrimary = errors.New("telemetry: primary sink is required when telemetry is enabled")

// InstanceProvider returns the instance row. Instance creates it on first use; Lookup never writes.
type InstanceProvider interface {
	Instance(ctx context.Context) (*domain.InstanceTelemetry, error)
	Lookup(ctx context.Context) (*domain.InstanceTelemetry, error)
}

// ReportBuilder produces the aggregate metrics.
type ReportBuilder interface {
	Build(ctx context.Context) (domain.Properties, error)
}

// Options configures a Job.
type Options struct {
	// Enabled false makes Run a logged no-op.
	Enabled   bool
	Instances InstanceProvider
	Report    ReportBuilder
	System    SystemInfo
	// Primary receives every message; its error fails the run.
	Primary EventEmitter
	// Mirrors receive the same message asynchronously; failures are only logged.
	Mirrors []Sink
	// Now and NewMessageID default to time.Now and uuid.NewString.
	Now          func() time.Time
	NewMessageID func() string
}

// Job is one telemetry dispatch, safe to run repeatedly and concurrently.
type Job struct {
	opts     Options
	mirrors  sync.WaitGroup
	tracer   trace.Tracer
	runs     metric.Int64Counter
	failures metric.Int64Counter
}

// NewJob validates opts and registers the job's instruments on the global OTel providers.
func NewJob(opts Options) (*Job, error) {
	if opts.Instances == nil || opts.Report == nil {
		return nil, errors.New("telemetry: instance provider and report builder are required")
	}
	if opts.Enabled && opts.Primary == nil {
		return nil, ErrNoPrimary
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewMessageID == nil {
		opts.NewMessageID = uuid.NewString
	}
	meter := otel.Meter(instrumentationName)
	runs, err := meter.Int64Counter("telemetry.runs", metric.WithDescription("Telemetry dispatch attempts"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: runs counter: %w", err)
	}
	failures, err := meter.Int64Counter("telemetry.failures", metric.WithDescription("Telemetry dispatches that failed"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: failures counter: %w", err)
	}
	return &Job{
		opts:     opts,
		tracer:   otel.Tracer(instrumentationName),
		runs:     runs,
		failures: failures,
	}, nil
}

// Enabled reports whether Run sends anything.
func (j *Job) Enabled() bool { return j.opts.Enabled }

// Compose builds the message Run would send without sending it.
// When telemetry is disabled the instance row is only read, never created, and
// the message has an empty user id until one exists.
func (j *Job) Compose(ctx context.Context) (*domain.TrackMessage, error) {
	instance, err := j.instance(ctx)
	if err != nil {
		return nil, err
	}
	report, err := j.opts.Report.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build report: %w", err)
	}
	return &domain.TrackMessage{
		MessageID:  j.opts.NewMessageID(),
		UserID:     instance.InstanceID,
		Event:      domain.EventDailyTelemetry,
		Properties: report.Merge(j.opts.System.Properties(instance.CreatedAt)),
		Timestamp:  j.opts.Now().UTC(),
	}, nil
}

func (j *Job) instance(ctx context.Context) (*domain.InstanceTelemetry, error) {
	if j.opts.Enabled {
		return j.opts.Instances.Instance(ctx)
	}
	row, err := j.opts.Instances.Lookup(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return &domain.InstanceTelemetry{}, nil
	}
	return row, nil
}

// Run sends one report. It returns nil without side effects when telemetry is disabled,
// and the primary sink's error otherwise. Mirrors are started after a successful send
// and are not waited for; see Wait.
func (j *Job) Run(ctx context.Context) error {
	if !j.opts.Enabled {
		log.Info().Msg("telemetry: disabled, nothing sent")
		return nil
	}
	ctx, span := j.tracer.Start(ctx, "telemetry.send")
	defer span.End()
	j.runs.Add(ctx, 1)

	msg, err := j.send(ctx)
	if err != nil {
		j.failures.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(
		attribute.String("telemetry.instance_id", msg.UserID),
		attribute.Int("telemetry.properties", len(msg.Properties)),
	)
	log.Info().
		Str("instance_id", msg.UserID).
		Str("message_id", msg.MessageID).
		Int("metrics", len(msg.Properties)).
		Msg("telemetry: report sent")

	for _, sink := range j.opts.Mirrors {
		EmitAsync(&j.mirrors, sink, msg)
	}
	return nil
}

func (j *Job) send(ctx context.Context) (*domain.TrackMessage, error) {
	msg, err := j.Compose(ctx)
	if err != nil {
		return nil, err
	}
	if err := j.opts.Primary.Emit(ctx, msg); err != nil {
		return nil, fmt.Errorf("telemetry: send: %w", err)
	}
	return msg, nil
}

// Wait blocks until in-flight mirror emits finish or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		j.mirrors.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
