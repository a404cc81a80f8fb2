// Package pipeline sequences one report run from dataset to email.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/aristath/market-reports/internal/events"
	"github.com/aristath/market-reports/internal/modules/dataset"
	"github.com/aristath/market-reports/internal/modules/report"
	"github.com/aristath/market-reports/internal/modules/results"
	"github.com/aristath/market-reports/internal/utils"
	"github.com/rs/zerolog"
)

// Stage names one step of a run
type Stage string

const (
	StageDataset Stage = "acquire_dataset"
	StageUpload  Stage = "upload"
	StageSubmit  Stage = "submit"
	StageCollect Stage = "collect"
	StageReport  Stage = "report"
	StageNotify  Stage = "notify"
)

// Run outcomes
const (
	OutcomeReport = "report"
	OutcomeNoData = "no_data"
)

// slowStage is the duration above which a stage is logged at warn level
const slowStage = 5 * time.Minute

// StageError records which stage a run failed in
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage of a run error, or "" if err carries none
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// DatasetFetcher provides today's dataset snapshot
type DatasetFetcher interface {
	Fetch(ctx context.Context, spec dataset.Spec) (string, error)
}

// DatasetUploader places the snapshot on the distributed filesystem
type DatasetUploader interface {
	Upload(ctx context.Context, localPath, remotePath string) (string, error)
}

// JobSubmitter runs the analysis on the compute engine
type JobSubmitter interface {
	Submit(ctx context.Context, scriptPath, initialDate, finalDate, datasetPath string) (string, error)
}

// ResultCollector retrieves engine output into a local working directory
type ResultCollector interface {
	Collect(ctx context.Context, jobID string) (*results.Collection, error)
	WorkDir(jobID string) string
}

// ReportSynthesizer builds the report from normalized results
type ReportSynthesizer interface {
	Synthesize(ctx context.Context, in report.Input) (*domain.ReportPayload, error)
}

// Notifier delivers the report
type Notifier interface {
	Send(ctx context.Context, subject, htmlBody, to string, attachments []string) (domain.Warnings, error)
}

// EventEmitter receives run lifecycle events
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// Config holds the fixed parameters of every run
type Config struct {
	Dataset  dataset.Spec
	InputDir string // Remote directory the snapshot is uploaded into
}

// RunResult describes a completed run
type RunResult struct {
	JobID       string
	Outcome     string
	Attachments int
	Records     int
	Warnings    domain.Warnings
	Duration    time.Duration
}

// Orchestrator runs the pipeline stages in order
type Orchestrator struct {
	cfg         Config
	fetcher     DatasetFetcher
	uploader    DatasetUploader
	submitter   JobSubmitter
	collector   ResultCollector
	synthesizer ReportSynthesizer
	notifier    Notifier
	events      EventEmitter
	removeAll   func(path string) error
	log         zerolog.Logger
}

// NewOrchestrator creates an orchestrator. emitter may be nil.
func NewOrchestrator(
	cfg Config,
	fetcher DatasetFetcher,
	uploader DatasetUploader,
	submitter JobSubmitter,
	collector ResultCollector,
	synthesizer ReportSynthesizer,
	notifier Notifier,
	emitter EventEmitter,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		fetcher:     fetcher,
		uploader:    uploader,
		submitter:   submitter,
		collector:   collector,
		synthesizer: synthesizer,
		notifier:    notifier,
		events:      emitter,
		removeAll:   os.RemoveAll,
		log:         log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes one already validated request end to end. Any stage failure
// stops the run; the job working directory is removed on every path once a
// job id exists.
func (o *Orchestrator) Run(ctx context.Context, req domain.JobRequest) (result *RunResult, err error) {
	started := time.Now()
	log := o.log.With().
		Str("script_path", req.ScriptPath).
		Str("initial_date", req.InitialDate).
		Str("final_date", req.FinalDate).
		Str("email", req.Email).
		Logger()

	log.Info().Msg("Pipeline run started")
	o.emit(&events.RunStartedData{
		ScriptPath:  req.ScriptPath,
		InitialDate: req.InitialDate,
		FinalDate:   req.FinalDate,
		Email:       req.Email,
	})

	var jobID, workDir string
	defer func() {
		if workDir != "" {
			o.cleanup(jobID, workDir, log)
		}
		if err != nil {
			o.fail(jobID, err, log)
		}
	}()

	var localDataset string
	if err := o.stage(StageDataset, "", log, func() error {
		var ferr error
		localDataset, ferr = o.fetcher.Fetch(ctx, o.cfg.Dataset)
		return ferr
	}); err != nil {
		return nil, err
	}

	var remoteDataset string
	if err := o.stage(StageUpload, "", log, func() error {
		var uerr error
		remoteDataset, uerr = o.uploader.Upload(ctx, localDataset, path.Join(o.cfg.InputDir, filepath.Base(localDataset)))
		return uerr
	}); err != nil {
		return nil, err
	}

	if err := o.stage(StageSubmit, "", log, func() error {
		var serr error
		jobID, serr = o.submitter.Submit(ctx, req.ScriptPath, req.InitialDate, req.FinalDate, remoteDataset)
		return serr
	}); err != nil {
		return nil, err
	}
	workDir = o.collector.WorkDir(jobID)
	log = log.With().Str("job_id", jobID).Logger()

	var collection *results.Collection
	if err := o.stage(StageCollect, jobID, log, func() error {
		var cerr error
		collection, cerr = o.collector.Collect(ctx, jobID)
		if cerr != nil {
			return cerr
		}
		return requireOutputs(collection)
	}); err != nil {
		return nil, err
	}

	result = &RunResult{JobID: jobID}
	result.Warnings.Merge(collection.Warnings)

	var payload *domain.ReportPayload
	if err := o.stage(StageReport, jobID, log, func() error {
		var rerr error
		payload, rerr = o.synthesizer.Synthesize(ctx, report.Input{
			DailyReturnsPath:  collection.Files[results.DailyReturns],
			AverageReturnPath: collection.Files[results.AverageDailyReturn],
			InitialDate:       req.InitialDate,
			FinalDate:         req.FinalDate,
			WorkDir:           collection.Dir,
		})
		return rerr
	}); err != nil {
		return nil, err
	}

	if err := o.stage(StageNotify, jobID, log, func() error {
		warnings, nerr := o.notifier.Send(ctx, payload.Subject, payload.HTMLBody, req.Email, payload.Attachments)
		result.Warnings.Merge(warnings)
		return nerr
	}); err != nil {
		return nil, err
	}

	result.Outcome = OutcomeReport
	if payload.NoData {
		result.Outcome = OutcomeNoData
	}
	result.Attachments = len(payload.Attachments)
	result.Records = payload.Records
	result.Duration = time.Since(started)

	log.Info().
		Str("outcome", result.Outcome).
		Int("attachments", result.Attachments).
		Int("warnings", len(result.Warnings)).
		Dur("duration", result.Duration).
		Msg("Pipeline run completed")
	o.emit(&events.RunCompletedData{
		JobID:       jobID,
		Outcome:     result.Outcome,
		Attachments: result.Attachments,
		Warnings:    result.Warnings,
		DurationMs:  result.Duration.Milliseconds(),
	})

	return result, nil
}

// stage runs fn, timing it and tagging any failure with the stage name
func (o *Orchestrator) stage(stage Stage, jobID string, log zerolog.Logger, fn func() error) error {
	timer := utils.NewTimer(string(stage), slowStage, log)
	err := fn()
	elapsed := timer.Stop()
	if err != nil {
		return &StageError{Stage: stage, Err: err}
	}

	o.emit(&events.StageCompletedData{
		JobID:      jobID,
		Stage:      string(stage),
		DurationMs: elapsed.Milliseconds(),
	})
	return nil
}

// requireOutputs fails when a part the report needs was not produced
func requireOutputs(c *results.Collection) error {
	for _, part := range results.Parts {
		p, ok := c.Files[part]
		if !ok {
			return domain.Errorf(domain.KindMissingOutput, "pipeline.collect", "engine output %s is missing", results.FileName(part))
		}
		if _, err := os.Stat(p); err != nil {
			return domain.NewError(domain.KindMissingOutput, "pipeline.collect",
				fmt.Sprintf("engine output %s is missing", results.FileName(part)), err)
		}
	}
	return nil
}

func (o *Orchestrator) cleanup(jobID, workDir string, log zerolog.Logger) {
	if err := o.removeAll(workDir); err != nil {
		log.Error().Err(err).Str("dir", workDir).Msg("Failed to remove working directory")
		o.emit(&events.CleanupFailedData{JobID: jobID, Dir: workDir, Error: err.Error()})
		return
	}
	log.Debug().Str("dir", workDir).Msg("Working directory removed")
}

func (o *Orchestrator) fail(jobID string, err error, log zerolog.Logger) {
	stage := StageOf(err)
	kind := domain.KindOf(err)

	log.Error().
		Err(err).
		Str("stage", string(stage)).
		Str("kind", string(kind)).
		Msg("Pipeline run failed")
	o.emit(&events.RunFailedData{
		JobID: jobID,
		Stage: string(stage),
		Kind:  string(kind),
		Error: domain.MessageOf(err),
	})
}

func (o *Orchestrator) emit(data events.EventData) {
	if o.events != nil {
		o.events.EmitTyped("pipeline", data)
	}
}
