package config

import (
	"os"
	"strconv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upstream UpstreamConfig
	Refresh  RefreshConfig
}

type ServerConfig struct {
	Port          string
	Host          string
	TriggerSecret string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type UpstreamConfig struct {
	BaseURL        string
	Timeout        int
	RequestsPerMin int
	MaxRetries     int
}

type RefreshConfig struct {
	JobRetentionHours int
	StalledAfterSec   int
	WorkerBackoffBase int
	WorkerMaxAttempts int
	UpsertBatchSize   int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			Host:          getEnv("HOST", "localhost"),
			TriggerSecret: getEnv("TRIGGER_SECRET", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "goalsync"),
			Password: getEnv("DB_PASSWORD", "goalsync123"),
			DBName:   getEnv("DB_NAME", "goalsync_core"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Upstream: UpstreamConfig{
			BaseURL:        getEnv("UPSTREAM_API_URL", "https://fantasy.premierleague.com/api"),
			Timeout:        getEnvAsInt("UPSTREAM_API_TIMEOUT", 30),
			RequestsPerMin: getEnvAsInt("UPSTREAM_REQUESTS_PER_MIN", 60),
			MaxRetries:     getEnvAsInt("UPSTREAM_MAX_RETRIES", 3),
		},
		Refresh: RefreshConfig{
			JobRetentionHours: getEnvAsInt("JOB_RETENTION_HOURS", 24),
			StalledAfterSec:   getEnvAsInt("JOB_STALLED_AFTER_SEC", 120),
			WorkerBackoffBase: getEnvAsInt("WORKER_BACKOFF_BASE_SEC", 2),
			WorkerMaxAttempts: getEnvAsInt("WORKER_MAX_ATTEMPTS", 3),
			UpsertBatchSize:   getEnvAsInt("UPSERT_BATCH_SIZE", 100),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) DatabaseURL() string {
	// If DATABASE_URL is set, use it directly
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}

	// Otherwise, construct from individual components
	return "postgres://" + c.Database.User + ":" + c.Database.Password +
		"@" + c.Database.Host + ":" + c.Database.Port +
		"/" + c.Database.DBName + "?sslmode=" + c.Database.SSLMode
}
