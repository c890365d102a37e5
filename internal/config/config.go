// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache and analytics stream (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Base URL for short links (e.g., https://dl.example.com)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Process-wide secret salting every client-address hash.
	// Read once at startup and never mutated; rotating it breaks
	// comparability of historical hashes.
	IPHashSecret string `env:"IP_HASH_SECRET,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Upper bound on a single cache+store lookup during resolution.
	ResolveTimeout time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"2s"`

	// Link cache TTLs
	LinkCacheTTL     time.Duration `env:"LINK_CACHE_TTL" envDefault:"1h"`
	NegativeCacheTTL time.Duration `env:"NEGATIVE_CACHE_TTL" envDefault:"5m"`

	// Rate limiting (fixed per-minute window per client identity).
	// The redirect path and the management API meter separate budgets.
	RateLimitEnabled      bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitPerMinute    int  `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	RateLimitAPIPerMinute int  `env:"RATE_LIMIT_API_PER_MINUTE" envDefault:"120"`

	// Analytics pipeline
	AnalyticsEnabled bool `env:"ANALYTICS_ENABLED" envDefault:"true"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.IPHashSecret) < 16 {
		return errors.New("IP_HASH_SECRET must be at least 16 characters")
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.RateLimitAPIPerMinute < 0 {
		return errors.New("RATE_LIMIT_API_PER_MINUTE must not be negative")
	}
	return nil
}
