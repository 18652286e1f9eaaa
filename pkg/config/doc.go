// Package config provides application configuration from environment variables and YAML files.
//
// # Overview
//
// Configuration is built in three layers: built-in defaults, an optional YAML
// file named by VEIL_CONFIG_FILE, and VEIL_* environment variables. Later
// layers win.
//
// # Configuration Structure
//
// Server settings:
//
//	VEIL_HOST="0.0.0.0"
//	VEIL_PORT="8080"
//	VEIL_HEALTH_PORT="9090"
//	VEIL_READ_TIMEOUT="15s"
//	VEIL_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	VEIL_POSTGRES_URL="postgres://localhost/veil"
//	VEIL_POSTGRES_MAX_CONNS="25"
//
// Cache and rate limit settings:
//
//	VEIL_CACHE_ENABLED="true"
//	VEIL_CACHE_TTL="5m"
//	VEIL_REDIS_URL="redis://localhost:6379"
//	VEIL_RATELIMIT_ENABLED="false"
//
// Auth settings:
//
//	VEIL_OIDC_ISSUER="https://securetoken.google.com/my-project"
//	VEIL_OIDC_AUDIENCE="my-project"
//
// Observability settings:
//
//	VEIL_LOG_LEVEL="info"  # debug, info, warn, error
//	VEIL_METRICS_ENABLED="true"
//	VEIL_OTEL_ENABLED="false"
//	VEIL_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger := observability.NewLogger(cfg.Observability.ParsedLogLevel(), os.Stdout)
package config
