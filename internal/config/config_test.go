package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONTROLLER_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 6000, cfg.Port)
	assert.Equal(t, time.Minute, cfg.Scheduler.DeferDelay)
	assert.Equal(t, filepath.Join(dir, "dataset"), cfg.Dataset.Dir)
	assert.Equal(t, filepath.Join(dir, "output"), cfg.Work.OutputDir)
	assert.Equal(t, "market_data", cfg.Dataset.Prefix)
	assert.Equal(t, []string{"^GSPC", "BRL=X"}, cfg.Dataset.Tickers)
	assert.Equal(t, map[string]string{"^GSPC": "S&P500", "BRL=X": "DOLAR"}, cfg.Dataset.Aliases)
	assert.Equal(t, "hdfs://coordinator:9000", cfg.Storage.NameNode)
	assert.Equal(t, StorageBackendCLI, cfg.Storage.Backend)
	assert.Equal(t, "/input", cfg.Storage.InputDir)
	assert.Equal(t, "/output", cfg.Storage.OutputRoot)
	assert.Equal(t, "spark-submit", cfg.Engine.Binary)
	assert.Empty(t, cfg.Engine.Args)
	assert.Equal(t, 465, cfg.Mail.Port)
	assert.True(t, cfg.Mail.UseSSL)
	assert.Empty(t, cfg.Report.ChartLibrary)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CONTROLLER_DATA_DIR", t.TempDir())
	t.Setenv("CONTROLLER_PORT", "7000")
	t.Setenv("SCHEDULER_DEFER_DELAY", "30s")
	t.Setenv("SCHEDULER_WORKERS", "2")
	t.Setenv("SPARK_SUBMIT_ARGS", "--master spark://coordinator:7077")
	t.Setenv("CONTROLLER_SENDER_SERVER", "smtp.example.com")
	t.Setenv("CONTROLLER_SENDER_EMAIL", "reports@example.com")
	t.Setenv("STORAGE_BACKEND", "local")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.DeferDelay)
	assert.Equal(t, 2, cfg.Scheduler.Workers)
	assert.Equal(t, []string{"--master", "spark://coordinator:7077"}, cfg.Engine.Args)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Server)
	assert.Equal(t, "reports@example.com", cfg.Mail.Email)
	assert.Equal(t, StorageBackendLocal, cfg.Storage.Backend)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown backend", "STORAGE_BACKEND", "ftp"},
		{"s3 without bucket", "STORAGE_BACKEND", "s3"},
		{"bad start date", "DATASET_START_DATE", "01/01/2000"},
		{"bad alias", "DATASET_ALIASES", "^GSPC"},
		{"zero workers", "SCHEDULER_WORKERS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONTROLLER_DATA_DIR", t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseAliases_SymbolsWithEquals(t *testing.T) {
	aliases, err := parseAliases("BRL=X:DOLAR, ^GSPC:S&P500")
	require.NoError(t, err)
	assert.Equal(t, "DOLAR", aliases["BRL=X"])
	assert.Equal(t, "S&P500", aliases["^GSPC"])
}
