// Package main is the entry point for the market report controller.
// The controller accepts report requests over HTTP, runs them on the batch
// cluster immediately or after a delay, and emails the synthesized report.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/market-reports/internal/config"
	"github.com/aristath/market-reports/internal/di"
	"github.com/aristath/market-reports/internal/server"
	"github.com/aristath/market-reports/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting market report controller")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Housekeeping runs once a day at midnight in the scheduler time zone
	if _, err := container.Scheduler.AddJob("@daily", container.Maintenance); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}
	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:            log,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		RequestTimeout: cfg.RequestTimeout,
		DataDir:        cfg.DataDir,
		Jobs:           container.Jobs,
		Events:         container.EventManager,
		Pool:           container.WorkerPool,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Pending deferred jobs are dropped; running ones finish before the pool exits
	container.Scheduler.Stop()
	log.Info().Int("dropped_jobs", len(container.Jobs.ListJobs())).Msg("Scheduler stopped")

	container.WorkerPool.Stop()
	log.Info().Msg("Worker pool stopped")

	log.Info().Msg("Server stopped")
}
