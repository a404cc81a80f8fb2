package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aristath/market-reports/internal/clients/yahoo"
	"github.com/aristath/market-reports/internal/config"
	"github.com/aristath/market-reports/internal/domain"
	"github.com/aristath/market-reports/internal/engine"
	"github.com/aristath/market-reports/internal/events"
	"github.com/aristath/market-reports/internal/modules/dataset"
	"github.com/aristath/market-reports/internal/modules/notification"
	"github.com/aristath/market-reports/internal/modules/report"
	"github.com/aristath/market-reports/internal/modules/results"
	"github.com/aristath/market-reports/internal/pipeline"
	"github.com/aristath/market-reports/internal/reliability"
	"github.com/aristath/market-reports/internal/scheduler"
	"github.com/aristath/market-reports/internal/storage"
	"github.com/aristath/market-reports/internal/utils"
	"github.com/rs/zerolog"
)

// Queue depth of the worker pool, per worker
const queuePerWorker = 16

// Working directories untouched for this long belong to crashed runs
const staleWorkDirAge = 24 * time.Hour

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Storage backend and gateway
// 2. Pipeline stages and orchestrator
// 3. Scheduler, worker pool and jobs
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// Step 1: Storage
	backend, err := NewStorageBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	container.Storage = storage.NewGateway(backend, log)

	// Step 2: Pipeline stages
	start, err := time.Parse(domain.DateLayout, cfg.Dataset.StartDate)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to parse dataset start date: %w", err)
	}

	container.EventManager = events.NewManager(log)
	container.MarketData = yahoo.NewClient(cfg.Dataset.ProviderURL, log)
	container.Datasets = dataset.NewCache(container.MarketData, cfg.Dataset.Prefix, start, log)
	container.Submitter = engine.NewSubmitter(utils.ExecRunner{}, cfg.Engine.Binary, cfg.Engine.Args, log)
	container.Collector = results.NewCollector(container.Storage, cfg.Storage.OutputRoot, cfg.Work.OutputDir, log)
	container.Synthesizer = report.NewSynthesizer(report.DefaultInstruments, report.DefaultSMAPeriod, log)
	if cfg.Report.ChartLibrary != "" {
		script, err := os.ReadFile(cfg.Report.ChartLibrary)
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to read chart library: %w", err)
		}
		container.Synthesizer.SetChartLibrary(script)
	}
	container.Notifier = notification.NewDispatcher(notification.Config{
		Host:     cfg.Mail.Server,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Email,
		Password: cfg.Mail.Password,
		UseSSL:   cfg.Mail.UseSSL,
	}, log)

	container.Orchestrator = pipeline.NewOrchestrator(
		pipeline.Config{
			Dataset: dataset.Spec{
				Tickers: cfg.Dataset.Tickers,
				Aliases: cfg.Dataset.Aliases,
				Dir:     cfg.Dataset.Dir,
			},
			InputDir: cfg.Storage.InputDir,
		},
		container.Datasets,
		container.Storage,
		container.Submitter,
		container.Collector,
		container.Synthesizer,
		container.Notifier,
		container.EventManager,
		log,
	)

	if !container.Notifier.Configured() {
		log.Warn().Msg("SMTP credentials not configured - pipeline runs will fail at the notify stage")
	}

	// Step 3: Background execution
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to load scheduler time zone: %w", err)
	}

	container.Scheduler = scheduler.New(loc, log)
	container.WorkerPool = scheduler.NewWorkerPool(cfg.Scheduler.Workers, cfg.Scheduler.Workers*queuePerWorker, log)
	container.Jobs = scheduler.NewJobScheduler(
		container.Scheduler,
		container.WorkerPool,
		container.Orchestrator,
		cfg.Scheduler.DeferDelay,
		container.EventManager,
		log,
	)
	container.Maintenance = reliability.NewDailyMaintenanceJob(reliability.MaintenanceConfig{
		DatasetDir:    cfg.Dataset.Dir,
		RetentionDays: cfg.Dataset.RetentionDays,
		WorkDir:       cfg.Work.OutputDir,
		StaleAfter:    staleWorkDirAge,
		DataDir:       cfg.DataDir,
	}, container.Datasets, container.EventManager, log)

	log.Info().
		Str("storage_backend", backend.Name()).
		Int("workers", cfg.Scheduler.Workers).
		Dur("defer_delay", cfg.Scheduler.DeferDelay).
		Msg("Dependency injection wiring completed successfully")

	return container, nil
}

// NewStorageBackend builds the filesystem backend selected by cfg.Backend
func NewStorageBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case config.StorageBackendCLI:
		return storage.NewCLIBackend(utils.ExecRunner{}, cfg.HDFSBinary, cfg.NameNode), nil
	case config.StorageBackendHDFS:
		return storage.NewHDFSBackend(cfg.NameNode, cfg.HDFSUser)
	case config.StorageBackendS3:
		return storage.NewS3Backend(ctx, storage.S3Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	case config.StorageBackendLocal:
		return storage.NewLocalBackend(cfg.LocalRoot), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
