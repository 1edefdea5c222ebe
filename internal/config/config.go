// Package config loads all environment variables for the ingestion service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// OptimizerStrategy selects the PDF optimizer implementation (spec §6).
type OptimizerStrategy string

const (
	OptimizerGhostscript OptimizerStrategy = "ghostscript"
	OptimizerQPDF        OptimizerStrategy = "qpdf"
	OptimizerNone        OptimizerStrategy = "none"
)

// RetryConfig is an attempts/delay policy, reused across the per-extension
// handler retry policies (spec §4.5, §5).
type RetryConfig struct {
	Attempts int
	DelayMS  int
}

// Delay returns the configured delay as a time.Duration.
func (r RetryConfig) Delay() time.Duration {
	return time.Duration(r.DelayMS) * time.Millisecond
}

// Config holds all configuration for the ingestion pipeline service.
type Config struct {
	// Server
	APIHost string
	APIPort string

	// Database
	DatabaseURL string

	// Object storage
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // non-empty for S3-compatible (MinIO-style) endpoints
	PresignedURLTTLMin int

	// Queues
	ZipQueueURL             string
	FileQueueURL            string
	MaxConcurrentMessages   int
	MaxMessagesPerPoll      int
	PollTimeoutSeconds      int

	// PDF handling
	MaxFileSizeBytes  int64
	MaxPages          int
	MaxExtractionDepth int

	// LibreOffice (office handler)
	ConvertibleExtensions map[string]bool
	LibreOfficeRetry      RetryConfig
	LibreOfficeTimeoutMin int

	// PDF optimizer / splitter
	OptimizerStrategy            OptimizerStrategy
	OptimizerRetry                RetryConfig
	OptimizationTimeoutMinutes    int
	GhostscriptPreset             string
	QPDFOptimizerOptions          []string

	// MSG handler
	MsgHandlerRetry RetryConfig

	// ZIP handler (nested archives)
	ZipHandlerConcurrencyLimit int
	ZipHandlerTempDir          string
	ZipHandlerRetry            RetryConfig

	// GX
	GxBaseURL     string
	GxAPIKeyName  string
	GxAPIKeyValue string
	GxMaxProcess  int

	// Schedulers (cron expressions)
	GxUploadSchedulerCron string
	LifecycleSchedulerCron string

	// Crash guard (SPEC_FULL §A, adapted from the teacher's ingestion_runs guard)
	CrashGuardQueuedTTLHours   int
	CrashGuardRunningStaleMin int

	// CORS
	CORSAllowedOrigins []string

	// Internal admin auth
	AdminJWTSecret      string
	AdminJWTExpiryHours int

	// Timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		APIHost: envOr("API_HOST", "0.0.0.0"),
		APIPort: envOr("API_PORT", "8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		S3Region:           envOr("S3_REGION", "us-east-1"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		PresignedURLTTLMin: envInt("PRESIGNED_URL_DURATION_MINUTES", 15),

		ZipQueueURL:           os.Getenv("ZIP_QUEUE_URL"),
		FileQueueURL:          os.Getenv("FILE_QUEUE_URL"),
		MaxConcurrentMessages: envInt("MAX_CONCURRENT_MESSAGES", 8),
		MaxMessagesPerPoll:    envInt("MAX_MESSAGES_PER_POLL", 10),
		PollTimeoutSeconds:    envInt("POLL_TIMEOUT_SECONDS", 20),

		MaxFileSizeBytes:   envInt64("MAX_FILE_SIZE_BYTES", 25*1024*1024),
		MaxPages:           envInt("MAX_PAGES", 500),
		MaxExtractionDepth: envInt("MAX_EXTRACTION_DEPTH", 4),

		ConvertibleExtensions: envSet("LIBREOFFICE_CONVERTIBLE_EXTENSIONS",
			"doc,docx,ppt,pptx,xls,xlsx,wpd,rtf,txt,odt,ods,odp"),
		LibreOfficeRetry: RetryConfig{
			Attempts: envInt("LIBREOFFICE_RETRY_ATTEMPTS", 2),
			DelayMS:  envInt("LIBREOFFICE_RETRY_DELAY_MS", 2000),
		},
		LibreOfficeTimeoutMin: envInt("LIBREOFFICE_TIMEOUT_MINUTES", 3),

		OptimizerStrategy: OptimizerStrategy(envOr("PDF_OPTIMIZER_STRATEGY", "none")),
		OptimizerRetry: RetryConfig{
			Attempts: envInt("PDF_OPTIMIZER_RETRY_ATTEMPTS", 2),
			DelayMS:  envInt("PDF_OPTIMIZER_RETRY_DELAY_MS", 1000),
		},
		OptimizationTimeoutMinutes: envInt("PDF_OPTIMIZATION_TIMEOUT_MINUTES", 5),
		GhostscriptPreset:          envOr("GHOSTSCRIPT_PRESET", "/ebook"),
		QPDFOptimizerOptions:       envList("QPDF_OPTIMIZER_OPTIONS", "--optimize-images,--compress-streams=y"),

		MsgHandlerRetry: RetryConfig{
			Attempts: envInt("MSG_HANDLER_RETRY_ATTEMPTS", 2),
			DelayMS:  envInt("MSG_HANDLER_RETRY_DELAY_MS", 1000),
		},

		ZipHandlerConcurrencyLimit: envInt("ZIP_HANDLER_CONCURRENCY_LIMIT", 4),
		ZipHandlerTempDir:          envOr("ZIP_HANDLER_TEMP_DIR", os.TempDir()),
		ZipHandlerRetry: RetryConfig{
			Attempts: envInt("ZIP_HANDLER_RETRY_ATTEMPTS", 2),
			DelayMS:  envInt("ZIP_HANDLER_RETRY_DELAY_MS", 1000),
		},

		GxBaseURL:     os.Getenv("GX_BASE_URL"),
		GxAPIKeyName:  envOr("GX_API_KEY_NAME", "X-API-Key"),
		GxAPIKeyValue: os.Getenv("GX_API_KEY_VALUE"),
		GxMaxProcess:  envInt("GX_MAX_PROCESS", 10),

		GxUploadSchedulerCron:  envOr("SCHEDULERS_GX_DOC_UPLOAD_CRON", "*/30 * * * * *"),
		LifecycleSchedulerCron: envOr("SCHEDULERS_LIFECYCLE_CRON", "0 * * * * *"),

		CrashGuardQueuedTTLHours:  envInt("CRASH_GUARD_QUEUED_TTL_HOURS", 6),
		CrashGuardRunningStaleMin: envInt("CRASH_GUARD_RUNNING_STALE_MINUTES", 30),

		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", "*"),

		AdminJWTSecret:      os.Getenv("ADMIN_JWT_SECRET"),
		AdminJWTExpiryHours: envInt("ADMIN_JWT_EXPIRY_HOURS", 24),

		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}
	if cfg.ZipQueueURL == "" || cfg.FileQueueURL == "" {
		return nil, fmt.Errorf("ZIP_QUEUE_URL and FILE_QUEUE_URL are required")
	}
	if cfg.GxBaseURL == "" {
		return nil, fmt.Errorf("GX_BASE_URL is required")
	}

	switch cfg.OptimizerStrategy {
	case OptimizerGhostscript, OptimizerQPDF, OptimizerNone:
	default:
		return nil, fmt.Errorf("invalid PDF_OPTIMIZER_STRATEGY: %q", cfg.OptimizerStrategy)
	}

	return cfg, nil
}

// Addr returns the listen address as "host:port".
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.APIHost, c.APIPort)
}

// PresignedURLTTL returns the presigned URL lifetime as a time.Duration.
func (c *Config) PresignedURLTTL() time.Duration {
	return time.Duration(c.PresignedURLTTLMin) * time.Minute
}

// PollTimeout returns the queue long-poll timeout as a time.Duration.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}

// LibreOfficeTimeout returns the per-call LibreOffice conversion timeout.
func (c *Config) LibreOfficeTimeout() time.Duration {
	return time.Duration(c.LibreOfficeTimeoutMin) * time.Minute
}

// OptimizationTimeout returns the per-call PDF optimizer timeout.
func (c *Config) OptimizationTimeout() time.Duration {
	return time.Duration(c.OptimizationTimeoutMinutes) * time.Minute
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envList(key, fallback string) []string {
	v := envOr(key, fallback)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envSet(key, fallback string) map[string]bool {
	list := envList(key, fallback)
	set := make(map[string]bool, len(list))
	for _, v := range list {
		set[strings.ToLower(v)] = true
	}
	return set
}
