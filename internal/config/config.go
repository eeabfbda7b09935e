// Package config loads application configuration from the environment,
// with a .env file picked up for local development.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/sacarolha/sacarolha/pkg/identity"
	"github.com/sacarolha/sacarolha/pkg/wine"
)

// Server holds the HTTP server settings.
type Server struct {
	Addr            string        `env:"SERVER_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// FailSafe bounds how long a live session may stay unresolved before
	// it is treated as signed out.
	FailSafe time.Duration `env:"AUTH_FAILSAFE" envDefault:"2s"`
}

// Labels holds label-image storage settings. An empty S3Bucket selects
// the local disk store.
type Labels struct {
	Dir       string `env:"LABELS_DIR" envDefault:"data/labels"`
	MaxSize   int64  `env:"LABELS_MAX_SIZE" envDefault:"10485760"`
	S3Bucket  string `env:"LABELS_S3_BUCKET"`
	S3Prefix  string `env:"LABELS_S3_PREFIX" envDefault:"labels/"`
	S3BaseURL string `env:"LABELS_S3_BASE_URL"`
}

// Config aggregates every component's settings.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Server   Server
	Labels   Labels
	Identity identity.Config
	Mongo    wine.MongoConfig
}

var dotenvOnce sync.Once

// Load parses the environment into a Config. A .env file in the working
// directory is applied first when present; missing files are ignored.
func Load() (Config, error) {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing environment: %w", err)
	}
	return cfg, nil
}
