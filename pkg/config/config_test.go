package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true string", "true", false, true},
		{"one string", "1", false, true},
		{"false string", "false", true, false},
		{"unset uses default", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL_VAR", tt.envValue)
			}
			got := getEnvBool("TEST_BOOL_VAR", tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("VEIL_POSTGRES_URL", "postgres://localhost/veil_test")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("default health port = %s, want 9090", cfg.Server.HealthPort)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("default cache TTL = %v, want 5m", cfg.Cache.TTL)
	}
	if cfg.RateLimit.Enabled {
		t.Error("rate limiting should be disabled by default")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("VEIL_POSTGRES_URL", "postgres://localhost/veil_test")
	t.Setenv("VEIL_PORT", "3000")
	t.Setenv("VEIL_LOG_LEVEL", "debug")
	t.Setenv("VEIL_CACHE_TTL", "30s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("port = %s, want 3000", cfg.Server.Port)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Observability.LogLevel)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("cache TTL = %v, want 30s", cfg.Cache.TTL)
	}
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "veil.yaml")
	content := `
server:
  port: "4000"
database:
  url: postgres://localhost/veil_yaml
observability:
  log_level: warn
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VEIL_CONFIG_FILE", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "4000" {
		t.Errorf("port = %s, want 4000 from YAML", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://localhost/veil_yaml" {
		t.Errorf("database URL = %s", cfg.Database.URL)
	}
	if cfg.Observability.LogLevel != "warn" {
		t.Errorf("log level = %s, want warn", cfg.Observability.LogLevel)
	}
}

func TestLoadConfig_EnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "veil.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"4000\"\ndatabase:\n  url: postgres://localhost/x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VEIL_CONFIG_FILE", path)
	t.Setenv("VEIL_PORT", "5000")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.Port != "5000" {
		t.Errorf("port = %s, env should win over file", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing postgres URL",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: true,
		},
		{
			name:    "same server and health port",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: true,
		},
		{
			name:    "rate limit without redis",
			mutate:  func(c *Config) { c.RateLimit.Enabled = true },
			wantErr: true,
		},
		{
			name:    "issuer without audience",
			mutate:  func(c *Config) { c.Auth.OIDCIssuer = "https://securetoken.google.com/p" },
			wantErr: true,
		},
		{
			name: "browser login without redirect URL",
			mutate: func(c *Config) {
				c.Auth.OIDCIssuer = "https://securetoken.google.com/p"
				c.Auth.OIDCAudience = "p"
				c.Auth.OIDCClientID = "client"
			},
			wantErr: true,
		},
		{
			name:    "otel enabled without endpoint",
			mutate:  func(c *Config) { c.Observability.OTelEnabled = true; c.Observability.OTelEndpoint = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Database.URL = "postgres://localhost/veil_test"
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
