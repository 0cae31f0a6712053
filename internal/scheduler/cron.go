// Package scheduler triggers a job on a cron schedule using robfig/cron.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// parser accepts 5-field expressions, an optional leading seconds field, and descriptors such as @daily or @every 1h.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Job is the unit of work triggered on each tick.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Validate reports whether spec is a schedule the scheduler accepts.
func Validate(spec string) error {
	if spec == "" {
		return errors.New("empty schedule")
	}
	_, err := parser.Parse(spec)
	return err
}

// Scheduler runs one job on a cron schedule. Overlapping runs are not prevented.
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	job     Job
	timeout time.Duration
	base    context.Context
	cancel  context.CancelFunc
}

// New returns a scheduler for job. loc sets the zone the expression is evaluated in (nil means UTC).
// timeout bounds each run; zero means no per-run deadline.
func New(spec string, loc *time.Location, job Job, timeout time.Duration) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler: job is nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		job:     job,
		timeout: timeout,
	}
	s.base, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cronLogger{})),
		cron.WithLogger(cronLogger{}),
	)
	s.entry = s.cron.Schedule(schedule, cron.FuncJob(s.tick))
	return s, nil
}

func (s *Scheduler) tick() {
	ctx := s.base
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := s.job.Run(ctx); err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("scheduler: job failed")
		return
	}
	log.Info().Dur("duration", time.Since(start)).Msg("scheduler: job finished")
}

// Start begins ticking in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Time("next", s.Next()).Msg("scheduler: started")
}

// Next returns the next activation time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Stop halts new ticks, cancels in-flight runs once ctx is done, and waits for them to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done.Done()
		return ctx.Err()
	}
}

// cronLogger routes robfig/cron's internal logging to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
