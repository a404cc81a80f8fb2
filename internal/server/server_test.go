package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/aristath/market-reports/internal/pipeline"
	"github.com/aristath/market-reports/internal/scheduler"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (c *countingRunner) Run(context.Context, domain.JobRequest) (*pipeline.RunResult, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &pipeline.RunResult{
		JobID:       "job-1",
		Outcome:     pipeline.OutcomeReport,
		Attachments: 2,
		Records:     5,
		Warnings:    domain.Warnings{"attachment x.html not found, skipped"},
		Duration:    1500 * time.Millisecond,
	}, nil
}

func newJobScheduler(t *testing.T, runner scheduler.PipelineRunner) *scheduler.JobScheduler {
	t.Helper()
	sched := scheduler.New(time.UTC, zerolog.Nop())
	sched.Start()
	pool := scheduler.NewWorkerPool(1, 1, zerolog.Nop())
	t.Cleanup(func() {
		sched.Stop()
		pool.Stop()
	})
	return scheduler.NewJobScheduler(sched, pool, runner, time.Hour, nil, zerolog.Nop())
}

func newTestServer(t *testing.T, jobs JobService) *Server {
	t.Helper()
	return New(Config{
		Log:     zerolog.Nop(),
		Port:    0,
		DevMode: true,
		DataDir: t.TempDir(),
		Jobs:    jobs,
	})
}

const validBody = `{"script_path":"/jobs/returns.py","initial_date":"2024-09-15","final_date":"2024-09-20","email":"user@example.com"}`

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp Response
	if method == http.MethodPost {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestSubmit_Success(t *testing.T) {
	runner := &countingRunner{}
	s := newTestServer(t, newJobScheduler(t, runner))

	rec, resp := do(t, s, http.MethodPost, "/api/submit", validBody)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "job-1", resp.Result.JobID)
	assert.Equal(t, 5, resp.Result.Records)
	assert.Equal(t, int64(1500), resp.Result.DurationMs)
	assert.Len(t, resp.Result.Warnings, 1)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestSubmit_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			name:    "invalid email",
			body:    `{"script_path":"/jobs/a.py","initial_date":"2024-09-15","final_date":"2024-09-20","email":"nope"}`,
			message: "email",
		},
		{
			name:    "missing field",
			body:    `{"initial_date":"2024-09-15","final_date":"2024-09-20","email":"user@example.com"}`,
			message: "script_path",
		},
		{
			name:    "bad date",
			body:    `{"script_path":"/jobs/a.py","initial_date":"15/09/2024","final_date":"2024-09-20","email":"user@example.com"}`,
			message: "yyyy-mm-dd",
		},
		{
			name:    "not json",
			body:    `script_path=/jobs/a.py`,
			message: "JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &countingRunner{}
			s := newTestServer(t, newJobScheduler(t, runner))

			for _, path := range []string{"/api/submit", "/api/schedule"} {
				rec, resp := do(t, s, http.MethodPost, path, tt.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code, path)
				assert.False(t, resp.Success)
				assert.Equal(t, string(domain.KindValidation), resp.Kind)
				assert.Contains(t, resp.Error, tt.message)
			}
			assert.Zero(t, runner.calls.Load())
		})
	}
}

func TestSubmit_PipelineFailureIs500(t *testing.T) {
	runner := &countingRunner{err: &pipeline.StageError{
		Stage: pipeline.StageSubmit,
		Err:   domain.Errorf(domain.KindEngineExecution, "engine.submit", "engine exited with return code 1"),
	}}
	s := newTestServer(t, newJobScheduler(t, runner))

	rec, resp := do(t, s, http.MethodPost, "/api/submit", validBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, string(domain.KindEngineExecution), resp.Kind)
	assert.Equal(t, string(pipeline.StageSubmit), resp.Stage)
	assert.Contains(t, resp.Error, "return code 1")
}

func TestSchedule_ThenList(t *testing.T) {
	runner := &countingRunner{}
	s := newTestServer(t, newJobScheduler(t, runner))

	rec, resp := do(t, s, http.MethodPost, "/api/schedule", validBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Job)
	assert.Equal(t, scheduler.ReportJobName, resp.Job.Name)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	listRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(listRec, req)
	require.Equal(t, http.StatusOK, listRec.Code)

	var jobs []domain.JobRecord
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, resp.Job.ID, jobs[0].ID)
	assert.NotNil(t, jobs[0].NextRunTime)
	assert.True(t, strings.HasPrefix(jobs[0].Trigger, "date["))
	assert.Zero(t, runner.calls.Load())
}

type stubPool struct{}

func (stubPool) Stats() scheduler.PoolStats {
	return scheduler.PoolStats{Workers: 4, Active: 1, Completed: 7}
}

func TestSystemStatus(t *testing.T) {
	h := NewSystemHandlers("/data", stubPool{}, nil, zerolog.Nop())
	h.cpuPercent = func() (float64, error) { return 12.5, nil }
	h.memPercent = func() (float64, error) { return 40, nil }
	h.diskUsage = func(string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Total: 100 << 30, Free: 25 << 30, UsedPercent: 75}, nil
	}

	rec := httptest.NewRecorder()
	h.HandleSystemStatus(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 12.5, resp.CPUPercent)
	assert.Equal(t, 40.0, resp.MemoryPercent)
	assert.InDelta(t, 100.0, resp.Disk.TotalGB, 1e-9)
	assert.InDelta(t, 25.0, resp.Disk.FreeGB, 1e-9)
	assert.Equal(t, 4, resp.Pool.Workers)
	assert.Equal(t, int64(7), resp.Pool.Completed)
}

func TestSystemStatus_DegradedOnSamplingError(t *testing.T) {
	h := NewSystemHandlers("/data", nil, nil, zerolog.Nop())
	h.cpuPercent = func() (float64, error) { return 0, errors.New("no /proc") }
	h.memPercent = func() (float64, error) { return 10, nil }
	h.diskUsage = func(string) (*disk.UsageStat, error) { return &disk.UsageStat{}, nil }

	rec := httptest.NewRecorder()
	h.HandleSystemStatus(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "cpu")
}
