package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/enrollhq/accessgate/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// CRM backend configuration
	CRM CRMConfig

	// Directory cache configuration
	Cache CacheConfig

	// Audit trail configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// CRMConfig holds the upstream CRM backend settings
type CRMConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CacheConfig holds the directory fallback cache settings. The in-process
// LRU is always on; the shared redis tier is optional.
type CacheConfig struct {
	RedisURL      string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// AuditConfig holds the audit trail database settings. An empty URL
// disables persistence; events are still logged.
type AuditConfig struct {
	DatabaseURL string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("ACCESSGATE_HOST", "0.0.0.0"),
			Port:            getEnv("ACCESSGATE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("ACCESSGATE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("ACCESSGATE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("ACCESSGATE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("ACCESSGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		CRM: CRMConfig{
			BaseURL: getEnv("ACCESSGATE_CRM_URL", ""),
			Timeout: getEnvDuration("ACCESSGATE_CRM_TIMEOUT", 15*time.Second),
		},
		Cache: CacheConfig{
			RedisURL:      getEnv("ACCESSGATE_REDIS_URL", ""),
			RedisPassword: getEnv("ACCESSGATE_REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("ACCESSGATE_REDIS_DB", 0),
			TTL:           getEnvDuration("ACCESSGATE_CACHE_TTL", 5*time.Minute),
		},
		Audit: AuditConfig{
			DatabaseURL: getEnv("ACCESSGATE_AUDIT_DB_URL", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("ACCESSGATE_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("ACCESSGATE_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.CRM.BaseURL == "" {
		return fmt.Errorf("CRM base URL is required")
	}
	u, err := url.Parse(c.CRM.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid CRM base URL: %s", c.CRM.BaseURL)
	}
	if c.CRM.Timeout <= 0 {
		return fmt.Errorf("CRM timeout must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
