// Package scheduler runs background work: cron entries, one-shot triggers
// and the worker pool that executes pipeline runs.
package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/aristath/market-reports/pkg/logger"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a new scheduler evaluating schedules in loc
func New(loc *time.Location, log zerolog.Logger) *Scheduler {
	l := log.With().Str("component", "scheduler").Logger()
	cl := logger.Cron(l)

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		log: l,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running callbacks to return
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@daily"             - Every day at midnight
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			s.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})

	if err != nil {
		return 0, err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return id, nil
}

// ScheduleOnce runs fn a single time at the given instant. The entry is
// removed from the scheduler once it fires. A time in the past fires on the
// next scheduler tick.
func (s *Scheduler) ScheduleOnce(at time.Time, name string, fn func()) {
	ids := make(chan cron.EntryID, 1)

	id := s.cron.Schedule(&onceSchedule{at: at}, cron.FuncJob(func() {
		s.cron.Remove(<-ids)
		s.log.Debug().Str("job", name).Msg("Running one-shot job")
		fn()
	}))
	ids <- id

	s.log.Info().
		Str("job", name).
		Time("run_at", at).
		Msg("One-shot job registered")
}

// onceSchedule activates at a fixed instant and never again
type onceSchedule struct {
	at    time.Time
	calls atomic.Int32
}

// Next returns the activation time on the first call and the zero time
// (never) afterwards.
func (o *onceSchedule) Next(time.Time) time.Time {
	if o.calls.Add(1) == 1 {
		return o.at
	}
	return time.Time{}
}
