package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Dispatch    DispatchConfig
	Breaker     BreakerConfig
	Cache       CacheConfig
	RateLimit   RateLimitConfig
	Sources     SourcesConfig
	Logging     LoggingConfig
	Environment string
}

type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig configures the optional seen-listing store. An empty URL
// disables tracking entirely.
type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

type DispatchConfig struct {
	MaxConcurrent  int
	TotalTimeout   time.Duration
	PerSourceLimit int
}

type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
}

type CacheConfig struct {
	TTL           time.Duration
	PurgeInterval time.Duration
}

type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

type SourcesConfig struct {
	Dir string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 10),
		},
		Dispatch: DispatchConfig{
			MaxConcurrent:  getEnvInt("DISPATCH_MAX_CONCURRENT", 8),
			TotalTimeout:   getEnvDuration("DISPATCH_TOTAL_TIMEOUT", 15*time.Second),
			PerSourceLimit: getEnvInt("DISPATCH_PER_SOURCE_LIMIT", 100),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 3),
			Cooldown:         getEnvDuration("BREAKER_COOLDOWN", time.Minute),
		},
		Cache: CacheConfig{
			TTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
			PurgeInterval: getEnvDuration("CACHE_PURGE_INTERVAL", time.Minute),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
			Burst:     getEnvInt("RATE_LIMIT_BURST", 10),
		},
		Sources: SourcesConfig{
			Dir: getEnv("SOURCES_DIR", "configs/sources"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
