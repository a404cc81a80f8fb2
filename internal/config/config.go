// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/market-reports/internal/utils"
	"github.com/joho/godotenv"
)

// Storage backends understood by the gateway factory.
const (
	StorageBackendCLI   = "cli"   // hdfs dfs shell-out
	StorageBackendHDFS  = "hdfs"  // native HDFS RPC client
	StorageBackendS3    = "s3"    // S3-compatible object storage
	StorageBackendLocal = "local" // local directory standing in for the cluster
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for datasets and job working dirs (always absolute)
	LogLevel       string
	Port           int
	DevMode        bool
	RequestTimeout time.Duration
	Scheduler      SchedulerConfig
	Dataset        DatasetConfig
	Storage        StorageConfig
	Engine         EngineConfig
	Work           WorkConfig
	Report         ReportConfig
	Mail           MailConfig
}

// SchedulerConfig controls background execution
type SchedulerConfig struct {
	Workers    int
	DeferDelay time.Duration // Delay applied to "run later" submissions
	Timezone   string
}

// DatasetConfig describes the daily market dataset snapshot
type DatasetConfig struct {
	Dir           string
	Prefix        string
	StartDate     string            // First day of history, YYYY-MM-DD
	Tickers       []string          // Provider symbols, e.g. ^GSPC
	Aliases       map[string]string // Provider symbol -> column name
	RetentionDays int               // 0 disables snapshot pruning
	ProviderURL   string
}

// StorageConfig selects and configures the distributed filesystem backend
type StorageConfig struct {
	Backend    string
	NameNode   string // scheme://host:port of the cluster filesystem
	HDFSBinary string
	HDFSUser   string
	InputDir   string // Remote directory receiving dataset uploads
	OutputRoot string // Remote root under which the engine writes /{jobId}
	LocalRoot  string // Root directory for the local backend
	S3         S3Config
}

// S3Config holds object-storage credentials for the s3 backend
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// EngineConfig configures the batch-compute engine launcher
type EngineConfig struct {
	Binary string
	Args   []string // Extra arguments placed before the script path
}

// WorkConfig holds per-run local working directory settings
type WorkConfig struct {
	OutputDir string // Job working dirs are created as OutputDir/{jobId}
}

// ReportConfig holds report rendering settings
type ReportConfig struct {
	ChartLibrary string // Local echarts.min.js inlined into interactive charts; empty renders static SVG
}

// MailConfig holds SMTP submission settings.
// Credentials are optional at load time; the dispatcher refuses to send without them.
type MailConfig struct {
	Server   string
	Port     int
	Email    string
	Password string
	UseSSL   bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CONTROLLER_DATA_DIR", "/tmp")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	aliases, err := parseAliases(getEnv("DATASET_ALIASES", "^GSPC:S&P500,BRL=X:DOLAR"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("CONTROLLER_PORT", 6000),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Minute),
		Scheduler: SchedulerConfig{
			Workers:    getEnvAsInt("SCHEDULER_WORKERS", 4),
			DeferDelay: getEnvAsDuration("SCHEDULER_DEFER_DELAY", time.Minute),
			Timezone:   getEnv("SCHEDULER_TIMEZONE", "Local"),
		},
		Dataset: DatasetConfig{
			Dir:           getEnv("DATASET_DIR", filepath.Join(absDataDir, "dataset")),
			Prefix:        getEnv("DATASET_PREFIX", "market_data"),
			StartDate:     getEnv("DATASET_START_DATE", "2000-01-01"),
			Tickers:       utils.SplitList(getEnv("DATASET_TICKERS", "^GSPC,BRL=X")),
			Aliases:       aliases,
			RetentionDays: getEnvAsInt("DATASET_RETENTION_DAYS", 30),
			ProviderURL:   getEnv("MARKET_DATA_URL", "https://query1.finance.yahoo.com"),
		},
		Storage: StorageConfig{
			Backend:    getEnv("STORAGE_BACKEND", StorageBackendCLI),
			NameNode:   getEnv("HDFS_NAMENODE", "hdfs://coordinator:9000"),
			HDFSBinary: getEnv("HDFS_BINARY", "hdfs"),
			HDFSUser:   getEnv("HDFS_USER", "root"),
			InputDir:   getEnv("HDFS_INPUT_DIR", "/input"),
			OutputRoot: getEnv("HDFS_OUTPUT_ROOT", "/output"),
			LocalRoot:  getEnv("STORAGE_LOCAL_ROOT", filepath.Join(absDataDir, "dfs")),
			S3: S3Config{
				Endpoint:        getEnv("S3_ENDPOINT", ""),
				Region:          getEnv("S3_REGION", "auto"),
				Bucket:          getEnv("S3_BUCKET", ""),
				AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			},
		},
		Engine: EngineConfig{
			Binary: getEnv("SPARK_SUBMIT_BINARY", "spark-submit"),
			Args:   strings.Fields(getEnv("SPARK_SUBMIT_ARGS", "")),
		},
		Work: WorkConfig{
			OutputDir: getEnv("WORK_OUTPUT_DIR", filepath.Join(absDataDir, "output")),
		},
		Report: ReportConfig{
			ChartLibrary: getEnv("REPORT_CHART_LIBRARY", ""),
		},
		Mail: MailConfig{
			Server:   getEnv("CONTROLLER_SENDER_SERVER", ""),
			Port:     getEnvAsInt("CONTROLLER_SENDER_PORT", 465),
			Email:    getEnv("CONTROLLER_SENDER_EMAIL", ""),
			Password: getEnv("CONTROLLER_SENDER_PASSWORD", ""),
			UseSSL:   getEnvAsBool("CONTROLLER_SENDER_SSL", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler workers must be positive, got %d", c.Scheduler.Workers)
	}
	if c.Scheduler.DeferDelay <= 0 {
		return fmt.Errorf("scheduler defer delay must be positive, got %s", c.Scheduler.DeferDelay)
	}
	if _, err := time.Parse("2006-01-02", c.Dataset.StartDate); err != nil {
		return fmt.Errorf("invalid dataset start date %q: %w", c.Dataset.StartDate, err)
	}
	if len(c.Dataset.Tickers) == 0 {
		return fmt.Errorf("at least one dataset ticker is required")
	}

	switch c.Storage.Backend {
	case StorageBackendCLI, StorageBackendHDFS, StorageBackendLocal:
	case StorageBackendS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	return nil
}

// Location resolves the scheduler time zone.
func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// parseAliases reads "SYMBOL:Alias,SYMBOL:Alias". The last colon splits, so
// symbols may contain '=' (BRL=X).
func parseAliases(raw string) (map[string]string, error) {
	aliases := make(map[string]string)
	for _, pair := range utils.SplitList(raw) {
		idx := strings.LastIndex(pair, ":")
		if idx <= 0 || idx == len(pair)-1 {
			return nil, fmt.Errorf("invalid dataset alias %q, expected SYMBOL:Alias", pair)
		}
		aliases[pair[:idx]] = pair[idx+1:]
	}
	return aliases, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
