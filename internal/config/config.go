// Package config loads runtime settings from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting of the server.
type Config struct {
	Addr           string        `envconfig:"ADDR" default:":8080"`
	Env            string        `envconfig:"ENV" default:"development"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	MaxMessageSize int64         `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	RateBurst      int           `envconfig:"RATE_LIMIT_BURST" default:"10"`
	RateInterval   time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`

	// BadgerPath is the on-disk store location. Empty opens an in-memory
	// store that loses everything on restart.
	BadgerPath   string        `envconfig:"BADGER_PATH" default:"data/chat"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`

	// AssistantUserID is the identity the automated participant answers as.
	AssistantUserID string `envconfig:"ASSISTANT_USER_ID" default:"assistant-bot"`

	// AuthSecret enables token checks when non-empty.
	AuthSecret   string        `envconfig:"AUTH_SECRET"`
	AuthTokenTTL time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"24h"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads configuration from the environment. A .env file is consulted
// first when present, so local runs need no exported variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("chat", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("CHAT_STORE_TIMEOUT must be positive, got %s", cfg.StoreTimeout)
	}
	return &cfg, nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }
