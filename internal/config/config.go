// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/joeshaw/envdecode"

	"github.com/nodevault/custody-service/internal/mail"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	SMTP      mail.SMTPConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port         int      `env:"PORT,default=8080"`
	AllowOrigins []string `env:"CORS_ALLOW_ORIGINS,default=*"`
}

// DatabaseConfig holds the PostgreSQL connection settings. An empty URL
// selects the in-memory store.
type DatabaseConfig struct {
	URL          string `env:"DATABASE_URL"`
	MaxOpenConns int    `env:"DATABASE_MAX_OPEN_CONNS,default=20"`
	MaxIdleConns int    `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
}

// AuthConfig holds the token signing settings.
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
}

// LoggingConfig holds the log level and format.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// RateLimitConfig holds the per-caller request budget.
type RateLimitConfig struct {
	RequestsPerSecond int `env:"RATE_LIMIT_RPS,default=50"`
	Burst             int `env:"RATE_LIMIT_BURST,default=100"`
}

// Load decodes configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	return &cfg, nil
}
