package results

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/aristath/market-reports/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setup returns a collector over a local "cluster" root and the job's remote dir on disk
func setup(t *testing.T) (*Collector, string, string) {
	t.Helper()
	remoteRoot := t.TempDir()
	workRoot := t.TempDir()
	gw := storage.NewGateway(storage.NewLocalBackend(remoteRoot), zerolog.Nop())
	c := NewCollector(gw, "/output", workRoot, zerolog.Nop())
	return c, filepath.Join(remoteRoot, "output", "job-1"), workRoot
}

func TestCollector_NormalizesParts(t *testing.T) {
	c, remote, workRoot := setup(t)
	writeFile(t, filepath.Join(remote, "daily_returns", "part-00000-abc.csv"), "Date,DOLAR\n")
	writeFile(t, filepath.Join(remote, "daily_returns", "_SUCCESS"), "")
	writeFile(t, filepath.Join(remote, "average_daily_return", "part-00000-def.csv"), "Media_DOLAR_Retorno\n")

	collection, err := c.Collect(context.Background(), "job-1")
	require.NoError(t, err)

	dir := filepath.Join(workRoot, "job-1")
	assert.Equal(t, dir, collection.Dir)
	assert.True(t, collection.Warnings.Empty())
	assert.Equal(t, filepath.Join(dir, "daily_returns.csv"), collection.Files[DailyReturns])
	assert.Equal(t, filepath.Join(dir, "average_daily_return.csv"), collection.Files[AverageDailyReturn])

	content, err := os.ReadFile(filepath.Join(dir, "daily_returns.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Date,DOLAR\n", string(content))

	assert.NoDirExists(t, filepath.Join(dir, "daily_returns"))
	assert.NoDirExists(t, filepath.Join(dir, "average_daily_return"))
	assert.NoDirExists(t, remote, "remote output must be deleted after download")
}

func TestCollector_MultiplePartFilesIsIntegrityError(t *testing.T) {
	c, remote, workRoot := setup(t)
	writeFile(t, filepath.Join(remote, "daily_returns", "part-00000.csv"), "a\n")
	writeFile(t, filepath.Join(remote, "average_daily_return", "part-00000.csv"), "b\n")
	writeFile(t, filepath.Join(remote, "average_daily_return", "part-00001.csv"), "c\n")

	_, err := c.Collect(context.Background(), "job-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIntegrity))

	dir := filepath.Join(workRoot, "job-1")
	assert.FileExists(t, filepath.Join(dir, "daily_returns", "part-00000.csv"), "no rename may happen")
	assert.NoFileExists(t, filepath.Join(dir, "daily_returns.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "average_daily_return.csv"))
}

func TestCollector_MissingPartIsWarning(t *testing.T) {
	c, remote, _ := setup(t)
	writeFile(t, filepath.Join(remote, "daily_returns", "part-00000.csv"), "Date\n")

	collection, err := c.Collect(context.Background(), "job-1")
	require.NoError(t, err)

	require.Len(t, collection.Warnings, 1)
	assert.Contains(t, collection.Warnings[0], "average_daily_return")
	assert.NotContains(t, collection.Files, AverageDailyReturn)
	assert.Contains(t, collection.Files, DailyReturns)
}

func TestCollector_EmptyPartIsWarning(t *testing.T) {
	c, remote, _ := setup(t)
	writeFile(t, filepath.Join(remote, "daily_returns", "part-00000.csv"), "Date\n")
	writeFile(t, filepath.Join(remote, "average_daily_return", "_SUCCESS"), "")

	collection, err := c.Collect(context.Background(), "job-1")
	require.NoError(t, err)

	require.Len(t, collection.Warnings, 1)
	assert.Contains(t, collection.Warnings[0], "no data file")
}

type failingStorage struct {
	downloadErr error
	deleted     bool
}

func (f *failingStorage) Download(ctx context.Context, remotePath, localDir string) error {
	return f.downloadErr
}

func (f *failingStorage) Delete(ctx context.Context, remotePath string) error {
	f.deleted = true
	return nil
}

func TestCollector_DownloadFailureSkipsDelete(t *testing.T) {
	st := &failingStorage{downloadErr: domain.Errorf(domain.KindStorage, "storage.download", "boom")}
	c := NewCollector(st, "/output", t.TempDir(), zerolog.Nop())

	_, err := c.Collect(context.Background(), "job-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.False(t, st.deleted)
}
