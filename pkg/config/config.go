package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lovenda/veil/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Cache         CacheConfig         `yaml:"cache"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis configuration. Redis is optional; an empty URL
// disables the distributed cache and rate limiter.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// CacheConfig holds permission cache configuration
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

// AuthConfig holds token and OIDC verification configuration
type AuthConfig struct {
	// OIDC issuer used to verify Firebase ID tokens. securetoken.google.com
	// issuer URLs embed the project ID.
	OIDCIssuer   string `yaml:"oidc_issuer"`
	OIDCAudience string `yaml:"oidc_audience"`

	// Browser login (authorization code flow). Disabled unless a client ID
	// is configured.
	OIDCClientID     string `yaml:"oidc_client_id"`
	OIDCClientSecret string `yaml:"oidc_client_secret"`
	OIDCRedirectURL  string `yaml:"oidc_redirect_url"`

	// API token lifetime; zero means tokens never expire.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// RateLimitConfig holds request rate limit configuration
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
}

// AuditConfig holds audit logging configuration
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogFile string `yaml:"log_file"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// ParsedLogLevel returns the configured log level.
func (o ObservabilityConfig) ParsedLogLevel() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// LoadConfig builds configuration from defaults, an optional YAML file
// (VEIL_CONFIG_FILE), and environment variables, in that order of
// precedence (lowest to highest).
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("VEIL_CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize: 10,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    4096,
			TTL:     5 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL: 0,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerWindow: 300,
			Window:            time.Minute,
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEnabled:        false,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "veild",
			OTelServiceVersion: observability.Version,
			OTelInsecure:       true,
		},
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides configuration with VEIL_* environment variables.
func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("VEIL_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("VEIL_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("VEIL_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("VEIL_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("VEIL_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("VEIL_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("VEIL_HEALTH_PORT", cfg.Server.HealthPort)

	cfg.Database.URL = getEnv("VEIL_POSTGRES_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = getEnvInt("VEIL_POSTGRES_MAX_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvInt("VEIL_POSTGRES_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getEnvDuration("VEIL_POSTGRES_CONN_LIFETIME", cfg.Database.ConnMaxLifetime)

	cfg.Redis.URL = getEnv("VEIL_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = getEnv("VEIL_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("VEIL_REDIS_DB", cfg.Redis.DB)
	cfg.Redis.PoolSize = getEnvInt("VEIL_REDIS_POOL_SIZE", cfg.Redis.PoolSize)

	cfg.Cache.Enabled = getEnvBool("VEIL_CACHE_ENABLED", cfg.Cache.Enabled)
	cfg.Cache.Size = getEnvInt("VEIL_CACHE_SIZE", cfg.Cache.Size)
	cfg.Cache.TTL = getEnvDuration("VEIL_CACHE_TTL", cfg.Cache.TTL)

	cfg.Auth.OIDCIssuer = getEnv("VEIL_OIDC_ISSUER", cfg.Auth.OIDCIssuer)
	cfg.Auth.OIDCAudience = getEnv("VEIL_OIDC_AUDIENCE", cfg.Auth.OIDCAudience)
	cfg.Auth.OIDCClientID = getEnv("VEIL_OIDC_CLIENT_ID", cfg.Auth.OIDCClientID)
	cfg.Auth.OIDCClientSecret = getEnv("VEIL_OIDC_CLIENT_SECRET", cfg.Auth.OIDCClientSecret)
	cfg.Auth.OIDCRedirectURL = getEnv("VEIL_OIDC_REDIRECT_URL", cfg.Auth.OIDCRedirectURL)
	cfg.Auth.TokenTTL = getEnvDuration("VEIL_TOKEN_TTL", cfg.Auth.TokenTTL)

	cfg.RateLimit.Enabled = getEnvBool("VEIL_RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerWindow = getEnvInt("VEIL_RATELIMIT_REQUESTS", cfg.RateLimit.RequestsPerWindow)
	cfg.RateLimit.Window = getEnvDuration("VEIL_RATELIMIT_WINDOW", cfg.RateLimit.Window)

	cfg.Audit.Enabled = getEnvBool("VEIL_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.LogFile = getEnv("VEIL_AUDIT_LOG_FILE", cfg.Audit.LogFile)

	cfg.Observability.LogLevel = getEnv("VEIL_LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.MetricsEnabled = getEnvBool("VEIL_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("VEIL_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("VEIL_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("VEIL_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("VEIL_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("VEIL_OTEL_INSECURE", cfg.Observability.OTelInsecure)
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

	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive when cache is enabled")
	}

	if c.RateLimit.Enabled {
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required when rate limiting is enabled")
		}
		if c.RateLimit.RequestsPerWindow <= 0 {
			return fmt.Errorf("rate limit requests per window must be positive")
		}
	}

	if c.Auth.OIDCIssuer != "" && c.Auth.OIDCAudience == "" {
		return fmt.Errorf("OIDC audience is required when an issuer is configured")
	}
	if c.Auth.OIDCClientID != "" {
		if c.Auth.OIDCIssuer == "" {
			return fmt.Errorf("OIDC issuer is required when browser login is configured")
		}
		if c.Auth.OIDCRedirectURL == "" {
			return fmt.Errorf("OIDC redirect URL is required when browser login is configured")
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
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
