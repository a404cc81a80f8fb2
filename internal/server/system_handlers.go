package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/aristath/market-reports/internal/scheduler"
)

// JobLister reports pending jobs
type JobLister interface {
	ListJobs() []domain.JobRecord
}

// SystemStatusResponse represents host and controller health
type SystemStatusResponse struct {
	Status        string              `json:"status"` // "healthy" or "degraded"
	CPUPercent    float64             `json:"cpu_percent"`
	MemoryPercent float64             `json:"memory_percent"`
	Disk          DiskUsage           `json:"disk"`
	Pool          scheduler.PoolStats `json:"pool"`
	PendingJobs   int                 `json:"pending_jobs"`
	Uptime        string              `json:"uptime"`
	Warnings      []string            `json:"warnings,omitempty"`
}

// DiskUsage describes the filesystem holding the data directory
type DiskUsage struct {
	Path        string  `json:"path"`
	TotalGB     float64 `json:"total_gb"`
	FreeGB      float64 `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// SystemHandlers serves host metrics
type SystemHandlers struct {
	dataDir string
	pool    PoolStatter
	jobs    JobLister
	started time.Time
	log     zerolog.Logger

	cpuPercent func() (float64, error)
	memPercent func() (float64, error)
	diskUsage  func(path string) (*disk.UsageStat, error)
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(dataDir string, pool PoolStatter, jobs JobLister, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		dataDir:    dataDir,
		pool:       pool,
		jobs:       jobs,
		started:    time.Now(),
		log:        log.With().Str("component", "system_handlers").Logger(),
		cpuPercent: sampleCPU,
		memPercent: sampleMemory,
		diskUsage:  disk.Usage,
	}
}

// HandleSystemStatus returns host and controller status
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := SystemStatusResponse{
		Status: "healthy",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	}

	if v, err := h.cpuPercent(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		response.Warnings = append(response.Warnings, "cpu: "+err.Error())
	} else {
		response.CPUPercent = v
	}

	if v, err := h.memPercent(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		response.Warnings = append(response.Warnings, "memory: "+err.Error())
	} else {
		response.MemoryPercent = v
	}

	if usage, err := h.diskUsage(h.dataDir); err != nil {
		h.log.Warn().Err(err).Str("path", h.dataDir).Msg("Failed to get disk usage")
		response.Warnings = append(response.Warnings, "disk: "+err.Error())
	} else {
		response.Disk = DiskUsage{
			Path:        h.dataDir,
			TotalGB:     float64(usage.Total) / 1024 / 1024 / 1024,
			FreeGB:      float64(usage.Free) / 1024 / 1024 / 1024,
			UsedPercent: usage.UsedPercent,
		}
	}

	if h.pool != nil {
		response.Pool = h.pool.Stats()
	}
	if h.jobs != nil {
		response.PendingJobs = len(h.jobs.ListJobs())
	}

	if len(response.Warnings) > 0 {
		response.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, response, h.log)
}

// sampleCPU averages CPU usage across all cores over 100ms
func sampleCPU() (float64, error) {
	values, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	return values[0], nil
}

func sampleMemory() (float64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return stat.UsedPercent, nil
}
