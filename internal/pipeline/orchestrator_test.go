package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/aristath/market-reports/internal/events"
	"github.com/aristath/market-reports/internal/modules/dataset"
	"github.com/aristath/market-reports/internal/modules/report"
	"github.com/aristath/market-reports/internal/modules/results"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	path string
	err  error
}

func (f *fakeFetcher) Fetch(context.Context, dataset.Spec) (string, error) {
	return f.path, f.err
}

type fakeUploader struct {
	remote string
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, _, remotePath string) (string, error) {
	f.remote = remotePath
	return remotePath, f.err
}

type fakeSubmitter struct {
	jobID   string
	err     error
	dataset string
}

func (f *fakeSubmitter) Submit(_ context.Context, _, _, _, datasetPath string) (string, error) {
	f.dataset = datasetPath
	if f.err != nil {
		return "", f.err
	}
	return f.jobID, nil
}

// fakeCollector creates the working dir and writes the parts listed in files
type fakeCollector struct {
	root     string
	files    map[string]string // part -> content
	warnings domain.Warnings
	err      error
}

func (f *fakeCollector) WorkDir(jobID string) string {
	return filepath.Join(f.root, jobID)
}

func (f *fakeCollector) Collect(_ context.Context, jobID string) (*results.Collection, error) {
	dir := f.WorkDir(jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}

	c := &results.Collection{Dir: dir, Files: map[string]string{}, Warnings: f.warnings}
	for part, content := range f.files {
		p := filepath.Join(dir, results.FileName(part))
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			return nil, err
		}
		c.Files[part] = p
	}
	return c, nil
}

type fakeSynthesizer struct {
	payload *domain.ReportPayload
	err     error
	calls   int
}

func (f *fakeSynthesizer) Synthesize(context.Context, report.Input) (*domain.ReportPayload, error) {
	f.calls++
	return f.payload, f.err
}

type fakeNotifier struct {
	warnings domain.Warnings
	err      error
	sent     []string
}

func (f *fakeNotifier) Send(_ context.Context, subject, _, to string, _ []string) (domain.Warnings, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, subject+"|"+to)
	return f.warnings, nil
}

type recordingEmitter struct {
	types []events.EventType
	data  []events.EventData
}

func (r *recordingEmitter) EmitTyped(_ string, data events.EventData) {
	r.types = append(r.types, data.EventType())
	r.data = append(r.data, data)
}

type harness struct {
	fetcher     *fakeFetcher
	uploader    *fakeUploader
	submitter   *fakeSubmitter
	collector   *fakeCollector
	synthesizer *fakeSynthesizer
	notifier    *fakeNotifier
	emitter     *recordingEmitter
}

func newHarness(t *testing.T) *harness {
	return &harness{
		fetcher:   &fakeFetcher{path: "/tmp/dataset/market_data_2024-09-20.csv"},
		uploader:  &fakeUploader{},
		submitter: &fakeSubmitter{jobID: "job-1"},
		collector: &fakeCollector{
			root: t.TempDir(),
			files: map[string]string{
				results.DailyReturns:       "Date,DOLAR_Retorno\n2024-09-16,1.0\n",
				results.AverageDailyReturn: "Media_DOLAR_Retorno\n1.0\n",
			},
		},
		synthesizer: &fakeSynthesizer{payload: &domain.ReportPayload{
			Subject:     report.SubjectReport,
			HTMLBody:    "<p>ok</p>",
			Attachments: []string{"a.html", "b.html"},
			Records:     1,
		}},
		notifier: &fakeNotifier{},
		emitter:  &recordingEmitter{},
	}
}

func (h *harness) orchestrator() *Orchestrator {
	return NewOrchestrator(
		Config{InputDir: "/input"},
		h.fetcher, h.uploader, h.submitter, h.collector, h.synthesizer, h.notifier, h.emitter,
		zerolog.Nop(),
	)
}

func testRequest() domain.JobRequest {
	return domain.JobRequest{
		ScriptPath:  "/jobs/returns.py",
		InitialDate: "2024-09-15",
		FinalDate:   "2024-09-20",
		Email:       "user@example.com",
	}
}

func TestRun_Success(t *testing.T) {
	h := newHarness(t)
	h.collector.warnings = domain.Warnings{"collector warning"}
	h.notifier.warnings = domain.Warnings{"attachment skipped"}

	result, err := h.orchestrator().Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, OutcomeReport, result.Outcome)
	assert.Equal(t, 2, result.Attachments)
	assert.Equal(t, domain.Warnings{"collector warning", "attachment skipped"}, result.Warnings)

	assert.Equal(t, "/input/market_data_2024-09-20.csv", h.uploader.remote)
	assert.Equal(t, "/input/market_data_2024-09-20.csv", h.submitter.dataset)
	assert.Equal(t, []string{report.SubjectReport + "|user@example.com"}, h.notifier.sent)

	assert.NoDirExists(t, h.collector.WorkDir("job-1"))

	assert.Equal(t, events.RunStarted, h.emitter.types[0])
	assert.Equal(t, events.RunCompleted, h.emitter.types[len(h.emitter.types)-1])
	assert.Contains(t, h.emitter.types, events.StageCompleted)
}

func TestRun_NoData(t *testing.T) {
	h := newHarness(t)
	h.synthesizer.payload = &domain.ReportPayload{Subject: report.SubjectNoData, HTMLBody: "none", NoData: true}

	result, err := h.orchestrator().Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoData, result.Outcome)
	assert.Zero(t, result.Attachments)
	assert.NoDirExists(t, h.collector.WorkDir("job-1"))
}

func TestRun_FailureAtEachStageCleansUp(t *testing.T) {
	tests := []struct {
		name   string
		inject func(h *harness)
		stage  Stage
		kind   domain.ErrorKind
	}{
		{
			name: "dataset",
			inject: func(h *harness) {
				h.fetcher.err = domain.Errorf(domain.KindProvider, "dataset.fetch", "down")
			},
			stage: StageDataset,
			kind:  domain.KindProvider,
		},
		{
			name: "upload",
			inject: func(h *harness) {
				h.uploader.err = domain.Errorf(domain.KindStorage, "storage.upload", "refused")
			},
			stage: StageUpload,
			kind:  domain.KindStorage,
		},
		{
			name: "submission",
			inject: func(h *harness) {
				h.submitter.err = domain.Errorf(domain.KindEngineExecution, "engine.submit", "return code 1")
			},
			stage: StageSubmit,
			kind:  domain.KindEngineExecution,
		},
		{
			name: "collection",
			inject: func(h *harness) {
				h.collector.err = domain.Errorf(domain.KindIntegrity, "results.collect", "two parts")
			},
			stage: StageCollect,
			kind:  domain.KindIntegrity,
		},
		{
			name: "chart",
			inject: func(h *harness) {
				h.synthesizer.err = domain.Errorf(domain.KindChart, "report.chart", "render")
			},
			stage: StageReport,
			kind:  domain.KindChart,
		},
		{
			name: "delivery",
			inject: func(h *harness) {
				h.notifier.err = domain.Errorf(domain.KindDelivery, "notification.send", "smtp")
			},
			stage: StageNotify,
			kind:  domain.KindDelivery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.inject(h)

			result, err := h.orchestrator().Run(context.Background(), testRequest())
			require.Error(t, err)
			assert.Nil(t, result)

			assert.Equal(t, tt.stage, StageOf(err))
			assert.Equal(t, tt.kind, domain.KindOf(err))
			assert.NoDirExists(t, h.collector.WorkDir("job-1"))

			last := h.emitter.data[len(h.emitter.data)-1]
			failed, ok := last.(*events.RunFailedData)
			require.True(t, ok)
			assert.Equal(t, string(tt.stage), failed.Stage)
			assert.Equal(t, string(tt.kind), failed.Kind)
		})
	}
}

func TestRun_MissingAverageIsMissingOutput(t *testing.T) {
	h := newHarness(t)
	delete(h.collector.files, results.AverageDailyReturn)
	h.collector.warnings = domain.Warnings{"average_daily_return not found"}

	_, err := h.orchestrator().Run(context.Background(), testRequest())
	require.Error(t, err)

	assert.True(t, errors.Is(err, domain.ErrMissingOutput))
	assert.Equal(t, StageCollect, StageOf(err))
	assert.Zero(t, h.synthesizer.calls)
	assert.NoDirExists(t, h.collector.WorkDir("job-1"))
}

func TestRun_CleanupFailureIsNotEscalated(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator()
	o.removeAll = func(string) error { return errors.New("device busy") }

	result, err := o.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeReport, result.Outcome)
	assert.Contains(t, h.emitter.types, events.CleanupFailed)
}

func TestStageError(t *testing.T) {
	cause := domain.Errorf(domain.KindStorage, "storage.upload", "refused")
	err := error(&StageError{Stage: StageUpload, Err: cause})

	assert.Equal(t, "stage upload: storage.upload: refused", err.Error())
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.Equal(t, Stage(""), StageOf(errors.New("plain")))
}
