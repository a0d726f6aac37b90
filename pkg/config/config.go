package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sharesphere/sharesphere/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Authz         AuthzConfig
	OIDC          OIDCConfig
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

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds the snapshot cache configuration
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// AuthzConfig holds authorization engine tunables
type AuthzConfig struct {
	// SnapshotTTL bounds staleness of cached user snapshots; invalidation
	// on mutation is the primary freshness mechanism.
	SnapshotTTL time.Duration
	// UserLockCacheSize bounds the per-user lock table.
	UserLockCacheSize int
	// BanSweepSchedule is the cron expression for the lapsed-ban sweeper.
	BanSweepSchedule string
}

// OIDCConfig holds the credential-refresh provider configuration
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
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
			Host:            getEnv("SHARESPHERE_HOST", "0.0.0.0"),
			Port:            getEnv("SHARESPHERE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("SHARESPHERE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SHARESPHERE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("SHARESPHERE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SHARESPHERE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("SHARESPHERE_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("SHARESPHERE_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("SHARESPHERE_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("SHARESPHERE_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("SHARESPHERE_POSTGRES_CONN_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("SHARESPHERE_REDIS_URL", ""),
			Password: getEnv("SHARESPHERE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("SHARESPHERE_REDIS_DB", 0),
			PoolSize: getEnvInt("SHARESPHERE_REDIS_POOL_SIZE", 10),
		},
		Authz: AuthzConfig{
			SnapshotTTL:       getEnvDuration("SHARESPHERE_SNAPSHOT_TTL", 15*time.Minute),
			UserLockCacheSize: getEnvInt("SHARESPHERE_USER_LOCK_CACHE_SIZE", 4096),
			BanSweepSchedule:  getEnv("SHARESPHERE_BAN_SWEEP_SCHEDULE", "@every 10m"),
		},
		OIDC: OIDCConfig{
			IssuerURL:    getEnv("SHARESPHERE_OIDC_ISSUER", ""),
			ClientID:     getEnv("SHARESPHERE_OIDC_CLIENT_ID", ""),
			ClientSecret: getEnv("SHARESPHERE_OIDC_CLIENT_SECRET", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(strings.ToLower(getEnv("SHARESPHERE_LOG_LEVEL", "info"))),
			MetricsEnabled: getEnvBool("SHARESPHERE_METRICS_ENABLED", true),
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
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Authz.UserLockCacheSize <= 0 {
		return fmt.Errorf("user lock cache size must be positive")
	}
	if c.Authz.SnapshotTTL <= 0 {
		return fmt.Errorf("snapshot TTL must be positive")
	}

	// OIDC is optional as a unit; partial configuration is a mistake.
	oidcSet := c.OIDC.IssuerURL != "" || c.OIDC.ClientID != "" || c.OIDC.ClientSecret != ""
	oidcComplete := c.OIDC.IssuerURL != "" && c.OIDC.ClientID != "" && c.OIDC.ClientSecret != ""
	if oidcSet && !oidcComplete {
		return fmt.Errorf("OIDC issuer, client id, and client secret must all be set together")
	}

	return nil
}

// OIDCEnabled reports whether credential refresh is configured.
func (c *Config) OIDCEnabled() bool {
	return c.OIDC.IssuerURL != ""
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
