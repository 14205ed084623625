package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// maxParallelCalls caps batch_size * max_workers so a single process can't
// swamp the extraction endpoint.
const maxParallelCalls = 200

type Config struct {
	Port string

	// Extraction endpoint
	EndpointHost  string
	ExtractAPIKey string

	// Auth for this service's own API
	ServiceAPIKey string

	// Parse orchestration
	BatchSize         int // Documents in flight at once.
	MaxWorkers        int // Part workers per document.
	SplitSize         int // Max pages per remote call.
	MaxRetries        int
	BaseRetryWait     time.Duration
	MaxRetryWait      time.Duration
	PerAttemptTimeout time.Duration
	RateLimitRPS      float64 // Client-side request rate; 0 disables.
	RetryLogStyle     string  // none | log_msg | inline_block

	// Job queue
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration

	// Upload limits
	MaxUploadBytes int64
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		EndpointHost:  envOr("EXTRACT_ENDPOINT", "http://localhost:8081"),
		ExtractAPIKey: os.Getenv("EXTRACT_API_KEY"),

		ServiceAPIKey: os.Getenv("DOCPARSE_API_KEY"),

		BatchSize:         envInt("BATCH_SIZE", 4),
		MaxWorkers:        envInt("MAX_WORKERS", 5),
		SplitSize:         envInt("SPLIT_SIZE", 10),
		MaxRetries:        envInt("MAX_RETRIES", 100),
		BaseRetryWait:     envDuration("BASE_RETRY_WAIT", 1*time.Second),
		MaxRetryWait:      envDuration("MAX_RETRY_WAIT", 60*time.Second),
		PerAttemptTimeout: envDuration("PER_ATTEMPT_TIMEOUT", 90*time.Second),
		RateLimitRPS:      envFloat("RATE_LIMIT_RPS", 0),
		RetryLogStyle:     envOr("RETRY_LOGGING_STYLE", "log_msg"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),
		JobTTL:       envDuration("JOB_TTL", 1*time.Hour),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 5
	}
	if cfg.SplitSize <= 0 {
		cfg.SplitSize = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 100
	}
	if cfg.BaseRetryWait <= 0 {
		cfg.BaseRetryWait = 1 * time.Second
	}
	if cfg.MaxRetryWait <= 0 {
		cfg.MaxRetryWait = 60 * time.Second
	}
	if cfg.PerAttemptTimeout <= 0 {
		cfg.PerAttemptTimeout = 90 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}

	return cfg
}

func (c Config) Validate() error {
	if c.ExtractAPIKey == "" {
		return fmt.Errorf("EXTRACT_API_KEY is required")
	}
	if c.ServiceAPIKey == "" {
		return fmt.Errorf("DOCPARSE_API_KEY is required")
	}
	if c.SplitSize < 1 || c.SplitSize > 100 {
		return fmt.Errorf("SPLIT_SIZE must be between 1 and 100, got %d", c.SplitSize)
	}
	if c.BatchSize*c.MaxWorkers > maxParallelCalls {
		return fmt.Errorf("batch size * max workers must not exceed %d, got %d*%d",
			maxParallelCalls, c.BatchSize, c.MaxWorkers)
	}
	switch c.RetryLogStyle {
	case "none", "log_msg", "inline_block":
	default:
		return fmt.Errorf("RETRY_LOGGING_STYLE must be one of none, log_msg, inline_block; got %q", c.RetryLogStyle)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
