// Package reliability holds scheduled housekeeping that keeps the controller's
// disk usage bounded.
package reliability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/market-reports/internal/events"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Disk thresholds for the data directory
const (
	criticalFreeGB = 0.5
	lowFreeGB      = 5.0
)

// SnapshotPruner removes old dataset snapshots
type SnapshotPruner interface {
	Prune(dir string, retentionDays int) (int, error)
}

// EventEmitter receives maintenance results
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// MaintenanceConfig selects what the daily job cleans
type MaintenanceConfig struct {
	DatasetDir    string
	RetentionDays int           // 0 keeps every snapshot
	WorkDir       string        // Root of per-run working directories
	StaleAfter    time.Duration // Working directories older than this are leftovers of crashed runs
	DataDir       string        // Filesystem checked for free space
}

// DailyMaintenanceJob prunes dataset snapshots, removes stale working
// directories and checks free disk space
type DailyMaintenanceJob struct {
	cfg       MaintenanceConfig
	pruner    SnapshotPruner
	events    EventEmitter
	diskUsage func(path string) (*disk.UsageStat, error)
	now       func() time.Time
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job. emitter may be nil.
func NewDailyMaintenanceJob(cfg MaintenanceConfig, pruner SnapshotPruner, emitter EventEmitter, log zerolog.Logger) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		cfg:       cfg,
		pruner:    pruner,
		events:    emitter,
		diskUsage: disk.Usage,
		now:       time.Now,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := j.now()

	// Step 1: Snapshot retention
	pruned, err := j.pruner.Prune(j.cfg.DatasetDir, j.cfg.RetentionDays)
	if err != nil {
		j.log.Error().Err(err).Msg("Snapshot pruning failed")
		// Continue - disk check still matters
	}

	// Step 2: Working directories left behind by crashed runs
	stale := j.removeStaleWorkDirs()

	// Step 3: Check disk space
	usedPercent, err := j.checkDiskSpace()
	if err != nil {
		if j.events != nil {
			j.events.EmitTyped("reliability", &events.ErrorEventData{
				Error:   err.Error(),
				Context: map[string]interface{}{"job": j.Name(), "dir": j.cfg.DataDir},
			})
		}
		return err
	}

	if j.events != nil {
		j.events.EmitTyped("reliability", &events.MaintenanceCompletedData{
			SnapshotsPruned: pruned,
			DiskUsedPercent: usedPercent,
		})
	}

	j.log.Info().
		Int("snapshots_pruned", pruned).
		Int("stale_workdirs_removed", stale).
		Dur("duration_ms", j.now().Sub(startTime)).
		Msg("Daily maintenance completed successfully")

	return nil
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

func (j *DailyMaintenanceJob) removeStaleWorkDirs() int {
	if j.cfg.WorkDir == "" || j.cfg.StaleAfter <= 0 {
		return 0
	}

	entries, err := os.ReadDir(j.cfg.WorkDir)
	if err != nil {
		if !os.IsNotExist(err) {
			j.log.Warn().Err(err).Str("dir", j.cfg.WorkDir).Msg("Failed to list working directories")
		}
		return 0
	}

	cutoff := j.now().Add(-j.cfg.StaleAfter)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(j.cfg.WorkDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			j.log.Warn().Err(err).Str("dir", path).Msg("Failed to remove stale working directory")
			continue
		}
		removed++
	}
	return removed
}

// checkDiskSpace verifies sufficient disk space is available
func (j *DailyMaintenanceJob) checkDiskSpace() (float64, error) {
	usage, err := j.diskUsage(j.cfg.DataDir)
	if err != nil {
		return 0, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9

	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	// CRITICAL: Less than 500MB
	if availableGB < criticalFreeGB {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("CRITICAL: Insufficient disk space for pipeline runs")
		return usage.UsedPercent, fmt.Errorf("only %.2f GB free in %s", availableGB, j.cfg.DataDir)
	}

	if availableGB < lowFreeGB {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Msg("Disk space running low")
	}

	return usage.UsedPercent, nil
}
