// Package di wires the controller's components together.
package di

import (
	"github.com/aristath/market-reports/internal/clients/yahoo"
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
)

// Container holds all dependencies for the application.
// It is created by Wire() and handed to main for startup and shutdown.
type Container struct {
	// Clients
	MarketData *yahoo.Client

	// Pipeline stages
	Datasets     *dataset.Cache
	Storage      *storage.Gateway
	Submitter    *engine.Submitter
	Collector    *results.Collector
	Synthesizer  *report.Synthesizer
	Notifier     *notification.Dispatcher
	Orchestrator *pipeline.Orchestrator

	// Background execution
	EventManager *events.Manager
	Scheduler    *scheduler.Scheduler
	WorkerPool   *scheduler.WorkerPool
	Jobs         *scheduler.JobScheduler
	Maintenance  *reliability.DailyMaintenanceJob
}

// Close releases resources held by the container
func (c *Container) Close() error {
	if c.Storage != nil {
		return c.Storage.Close()
	}
	return nil
}
