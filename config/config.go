package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration in a structured way.
// A Config is built once at process start and passed down by constructor;
// there is no package-level instance.
type Config struct {
	App    AppConfig
	Paths  PathsConfig
	Valkey ValkeyConfig
	Cache  CacheConfig
	Queue  QueueConfig
}

type AppConfig struct {
	Version        string
	Port           string
	Debug          bool
	Environment    string
	BasicAuth      []string
	BasePath       string
	TrustedProxies []string
	ServerID       string
}

type PathsConfig struct {
	Storages  string
	TempFiles string
}

// ValkeyConfig selects the networked notification transport. When Enabled is
// false the application runs single-node with the in-process transport.
type ValkeyConfig struct {
	Enabled   bool
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

type CacheConfig struct {
	JanitorInterval time.Duration
	NotifyChannel   string
}

type QueueConfig struct {
	Workers        int
	QueueSize      int
	ReaperTimeout  time.Duration
	RetainFinished time.Duration
}

// Load reads configuration from environment variables (a .env file is applied
// first when present) and returns it with defaults filled in.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		// Missing .env is fine, the environment may be set by the runtime.
		_ = godotenv.Load(filepath.Join(envPath, ".env"))
	}

	storages := getEnv("PATH_STORAGES", "storages")

	cfg := &Config{
		App: AppConfig{
			Version:     "v1.4.0",
			Port:        getEnv("APP_PORT", "3000"),
			Debug:       getEnvBool("APP_DEBUG", false),
			Environment: getEnv("APP_ENV", "development"),
			BasePath:    getEnv("APP_BASE_PATH", ""),
			ServerID:    getEnv("SERVER_ID", ""),
		},
		Paths: PathsConfig{
			Storages:  storages,
			TempFiles: getEnv("PATH_TEMP_FILES", filepath.Join(storages, "tmp")),
		},
		Valkey: ValkeyConfig{
			Enabled:   getEnvBool("VALKEY_ENABLED", false),
			Address:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
			Password:  getEnv("VALKEY_PASSWORD", ""),
			DB:        getEnvInt("VALKEY_DB", 0),
			KeyPrefix: getEnv("VALKEY_KEY_PREFIX", "collab:"),
		},
		Cache: CacheConfig{
			JanitorInterval: getEnvDuration("CACHE_JANITOR_INTERVAL", time.Minute),
			NotifyChannel:   getEnv("CACHE_NOTIFY_CHANNEL", "cache.invalidate"),
		},
		Queue: QueueConfig{
			Workers:        getEnvInt("OPERATION_WORKERS", 10),
			QueueSize:      getEnvInt("OPERATION_QUEUE_SIZE", 100),
			ReaperTimeout:  getEnvDuration("OPERATION_REAPER_TIMEOUT", 2*time.Minute),
			RetainFinished: getEnvDuration("OPERATION_RETAIN_FINISHED", 10*time.Minute),
		},
	}

	if v := getEnv("APP_BASIC_AUTH", ""); v != "" {
		cfg.App.BasicAuth = strings.Split(v, ",")
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		cfg.App.TrustedProxies = strings.Split(v, ",")
	}

	return cfg, nil
}
