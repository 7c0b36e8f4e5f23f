package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends selectable with TOGGLES_STORAGE.
const (
	StorageMemory   = "memory"
	StorageBolt     = "bolt"
	StoragePostgres = "postgres"
)

type Config struct {
	Environment   string        // TOGGLES_ENV (default "development")
	APIBaseURL    string        // TOGGLES_API_BASE_URL (optional, empty = no remote flags)
	APIVersion    string        // TOGGLES_API_VERSION (default "v1")
	RemotePath    string        // TOGGLES_REMOTE_PATH (default "/feature-flags")
	RemoteTimeout time.Duration // TOGGLES_REMOTE_TIMEOUT (default 10s)
	ConfigFile    string        // TOGGLES_CONFIG_FILE (optional flag document: .yaml, .yml, .toml, .json)
	HooksFile     string        // TOGGLES_HOOKS_FILE (optional YAML list of flag change hooks)

	Storage     string // TOGGLES_STORAGE (memory|bolt|postgres, default "bolt")
	BoltPath    string // TOGGLES_BOLT_PATH (default "toggles.db")
	DatabaseURL string // TOGGLES_DATABASE_URL (required when storage=postgres)

	HTTPAddr  string // TOGGLES_HTTP_ADDR (default ":8080")
	AuthToken string // TOGGLES_AUTH_TOKEN (optional, empty = auth disabled)
	NATSURL   string // TOGGLES_NATS_URL (optional, empty = no events)
	Analytics bool   // TOGGLES_ANALYTICS (default false)
	LogLevel  slog.Level

	// Sync settings
	SyncInterval   time.Duration // TOGGLES_SYNC_INTERVAL (default 5m; 0 = disabled)
	SyncS3Bucket   string        // TOGGLES_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // TOGGLES_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // TOGGLES_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // TOGGLES_SYNC_S3_KEY (default "toggles/flags.jsonl")
	SyncGitRepo    string        // TOGGLES_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // TOGGLES_SYNC_GIT_FILE (default "flags.jsonl")
	SyncGitBranch  string        // TOGGLES_SYNC_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		Environment:    envOrDefault("TOGGLES_ENV", "development"),
		APIBaseURL:     strings.TrimRight(os.Getenv("TOGGLES_API_BASE_URL"), "/"),
		APIVersion:     envOrDefault("TOGGLES_API_VERSION", "v1"),
		RemotePath:     envOrDefault("TOGGLES_REMOTE_PATH", "/feature-flags"),
		ConfigFile:     os.Getenv("TOGGLES_CONFIG_FILE"),
		HooksFile:      os.Getenv("TOGGLES_HOOKS_FILE"),
		Storage:        strings.ToLower(envOrDefault("TOGGLES_STORAGE", StorageBolt)),
		BoltPath:       envOrDefault("TOGGLES_BOLT_PATH", "toggles.db"),
		DatabaseURL:    os.Getenv("TOGGLES_DATABASE_URL"),
		HTTPAddr:       envOrDefault("TOGGLES_HTTP_ADDR", ":8080"),
		AuthToken:      os.Getenv("TOGGLES_AUTH_TOKEN"),
		NATSURL:        os.Getenv("TOGGLES_NATS_URL"),
		SyncS3Bucket:   os.Getenv("TOGGLES_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("TOGGLES_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("TOGGLES_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("TOGGLES_SYNC_S3_KEY", "toggles/flags.jsonl"),
		SyncGitRepo:    os.Getenv("TOGGLES_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("TOGGLES_SYNC_GIT_FILE", "flags.jsonl"),
		SyncGitBranch:  envOrDefault("TOGGLES_SYNC_GIT_BRANCH", "main"),
	}

	switch c.Storage {
	case StorageMemory, StorageBolt:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("TOGGLES_DATABASE_URL is required when TOGGLES_STORAGE=postgres")
		}
	default:
		return nil, fmt.Errorf("TOGGLES_STORAGE: unknown backend %q", c.Storage)
	}

	var err error
	if c.RemoteTimeout, err = durationEnv("TOGGLES_REMOTE_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if c.SyncInterval, err = durationEnv("TOGGLES_SYNC_INTERVAL", "5m"); err != nil {
		return nil, err
	}

	if v := os.Getenv("TOGGLES_ANALYTICS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("TOGGLES_ANALYTICS: %w", err)
		}
		c.Analytics = b
	}

	if err := c.LogLevel.UnmarshalText([]byte(envOrDefault("TOGGLES_LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("TOGGLES_LOG_LEVEL: %w", err)
	}

	return c, nil
}

func durationEnv(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
