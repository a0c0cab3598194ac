// ==============================================================================
// CONFIG PACKAGE - pkg/config/config.go
// ==============================================================================
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Engine   EngineConfig
	Catalog  CatalogConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// JWTConfig holds the verification secret. Tokens are issued by the
// identity provider, not by this engine.
type JWTConfig struct {
	Secret string
}

// EngineConfig carries the tunables of the risk and accumulation engine.
// Monitoring breakpoints are percentages of the reporting threshold.
type EngineConfig struct {
	SweepInterval        time.Duration
	SweepEnabled         bool
	AlertBreakpoint      int
	ProgressBreakpoint   int
	AccumulationCacheTTL time.Duration
	UnitValueCacheTTL    time.Duration
}

// CatalogConfig locates the seed catalog file used by cmd/seed.
type CatalogConfig struct {
	SeedFile string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-this-secret"),
		},
		Engine: EngineConfig{
			SweepInterval:        getDurationEnv("ENGINE_SWEEP_INTERVAL", 24*time.Hour),
			SweepEnabled:         getBoolEnv("ENGINE_SWEEP_ENABLED", true),
			AlertBreakpoint:      getIntEnv("ENGINE_ALERT_BREAKPOINT", 75),
			ProgressBreakpoint:   getIntEnv("ENGINE_PROGRESS_BREAKPOINT", 25),
			AccumulationCacheTTL: getDurationEnv("ENGINE_ACCUMULATION_CACHE_TTL", 10*time.Minute),
			UnitValueCacheTTL:    getDurationEnv("ENGINE_UNIT_VALUE_CACHE_TTL", 12*time.Hour),
		},
		Catalog: CatalogConfig{
			SeedFile: getEnv("CATALOG_SEED_FILE", "./seed/catalog.json"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}
