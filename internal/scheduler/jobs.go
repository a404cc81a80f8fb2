package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/aristath/market-reports/internal/events"
	"github.com/aristath/market-reports/internal/pipeline"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReportJobName names every pipeline job in listings
const ReportJobName = "process_market_report"

// triggerLayout renders the fire time of deferred jobs
const triggerLayout = "2006-01-02 15:04:05 MST"

// PipelineRunner executes one validated request
type PipelineRunner interface {
	Run(ctx context.Context, req domain.JobRequest) (*pipeline.RunResult, error)
}

// EventEmitter receives scheduling events
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// JobScheduler accepts "run now" and "run later" requests and tracks pending
// jobs in memory.
type JobScheduler struct {
	sched  *Scheduler
	pool   *WorkerPool
	runner PipelineRunner
	delay  time.Duration
	events EventEmitter

	mu      sync.Mutex
	records []domain.JobRecord // Insertion order

	newID func() string
	now   func() time.Time
	log   zerolog.Logger
}

// NewJobScheduler creates a job scheduler. emitter may be nil.
func NewJobScheduler(sched *Scheduler, pool *WorkerPool, runner PipelineRunner, delay time.Duration, emitter EventEmitter, log zerolog.Logger) *JobScheduler {
	return &JobScheduler{
		sched:  sched,
		pool:   pool,
		runner: runner,
		delay:  delay,
		events: emitter,
		newID:  uuid.NewString,
		now:    time.Now,
		log:    log.With().Str("component", "job_scheduler").Logger(),
	}
}

// Delay returns the fixed delay applied to deferred submissions
func (js *JobScheduler) Delay() time.Duration {
	return js.delay
}

// SubmitImmediate validates req, runs it on the worker pool and waits for the
// result. The job is listed only until a worker picks it up.
func (js *JobScheduler) SubmitImmediate(ctx context.Context, req domain.JobRequest) (*pipeline.RunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := js.newID()
	now := js.now()
	js.add(domain.JobRecord{
		ID:          id,
		Name:        ReportJobName,
		NextRunTime: &now,
		Trigger:     "immediate",
	})

	log := js.log.With().Str("id", id).Str("email", req.Email).Logger()
	log.Info().Msg("Immediate job submitted")

	// Runs are not cancelled when the caller goes away
	runCtx := context.WithoutCancel(ctx)

	var result *pipeline.RunResult
	err := js.pool.Do(ctx, ReportJobName, func() error {
		js.remove(id)
		var runErr error
		result, runErr = js.runner.Run(runCtx, req)
		return runErr
	})
	js.remove(id)

	if err != nil {
		log.Error().Err(err).Msg("Immediate job failed")
		return nil, err
	}
	return result, nil
}

// SubmitDeferred validates req and schedules exactly one run at now+delay.
// The run is fire-and-forget: its failures are logged only.
func (js *JobScheduler) SubmitDeferred(req domain.JobRequest) (*domain.JobRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := js.newID()
	at := js.now().Add(js.delay)
	record := domain.JobRecord{
		ID:          id,
		Name:        ReportJobName,
		NextRunTime: &at,
		Trigger:     fmt.Sprintf("date[%s]", at.Format(triggerLayout)),
	}
	js.add(record)

	log := js.log.With().Str("id", id).Str("email", req.Email).Logger()

	js.sched.ScheduleOnce(at, ReportJobName, func() {
		js.remove(id)

		err := js.pool.Submit(ReportJobName, func() {
			result, err := js.runner.Run(context.Background(), req)
			if err != nil {
				log.Error().
					Err(err).
					Str("kind", string(domain.KindOf(err))).
					Str("stage", string(pipeline.StageOf(err))).
					Msg("Deferred job failed")
				return
			}
			log.Info().
				Str("job_id", result.JobID).
				Str("outcome", result.Outcome).
				Msg("Deferred job completed")
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to start deferred job")
			js.emitError(err, id)
		}
	})

	log.Info().Time("run_at", at).Msg("Job scheduled")
	if js.events != nil {
		js.events.EmitTyped("scheduler", &events.JobScheduledData{
			ID:          id,
			Name:        ReportJobName,
			NextRunTime: at,
		})
	}

	return &record, nil
}

// ListJobs returns a snapshot of pending jobs in submission order
func (js *JobScheduler) ListJobs() []domain.JobRecord {
	js.mu.Lock()
	defer js.mu.Unlock()

	out := make([]domain.JobRecord, len(js.records))
	copy(out, js.records)
	return out
}

func (js *JobScheduler) emitError(err error, id string) {
	if js.events == nil {
		return
	}
	js.events.EmitTyped("scheduler", &events.ErrorEventData{
		Error:   err.Error(),
		Context: map[string]interface{}{"id": id, "name": ReportJobName},
	})
}

func (js *JobScheduler) add(record domain.JobRecord) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.records = append(js.records, record)
}

func (js *JobScheduler) remove(id string) {
	js.mu.Lock()
	defer js.mu.Unlock()
	for i, r := range js.records {
		if r.ID == id {
			js.records = append(js.records[:i], js.records[i+1:]...)
			return
		}
	}
}
