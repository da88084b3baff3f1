// Package config loads the server configuration.
//
// Values come from the process environment. A .env file in the working
// directory is read first when present; variables already set in the
// environment win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	MediaBackendLocal = "local"
	MediaBackendS3    = "s3"

	minSecretLength = 16
)

type Config struct {
	Port          int           `env:"PORT" envDefault:"8080"`
	DatabaseURL   string        `env:"DATABASE_URL" envDefault:"data/recipes.db"`
	DBWaitTimeout time.Duration `env:"DB_WAIT_TIMEOUT" envDefault:"30s"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	Media    MediaConfig  `envPrefix:"MEDIA_"`
	S3       S3Config     `envPrefix:"S3_"`
	AuthRate RateConfig   `envPrefix:"AUTH_RATE_"`
	GitHub   GitHubConfig `envPrefix:"GITHUB_"`
}

type MediaConfig struct {
	Backend string `env:"BACKEND" envDefault:"local"`
	Root    string `env:"ROOT" envDefault:"data/media"`
	URL     string `env:"URL" envDefault:"/media/"`
}

type S3Config struct {
	Bucket          string `env:"BUCKET"`
	Region          string `env:"REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"ENDPOINT"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	PublicURL       string `env:"PUBLIC_URL"`
}

// RateConfig drives the per-IP limiter in front of the credential endpoints.
type RateConfig struct {
	PerMinute int `env:"PER_MINUTE" envDefault:"20"`
	Burst     int `env:"BURST" envDefault:"5"`
}

type GitHubConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

// Enabled reports whether GitHub sign-in has been configured.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Load reads .env (if any) and the environment, then validates the result.
func Load() (*Config, error) {
	cfg, err := parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase is Load for the manage CLI. Only the database settings are
// checked, so migrations can run before JWT_SECRET is provisioned.
func LoadDatabase() (*Config, error) {
	cfg, err := parse()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must not be empty")
	}
	if cfg.DBWaitTimeout <= 0 {
		return nil, errors.New("config: DB_WAIT_TIMEOUT must be positive")
	}
	return cfg, nil
}

func parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: TOKEN_TTL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	switch c.Media.Backend {
	case MediaBackendLocal:
	case MediaBackendS3:
		if c.S3.Bucket == "" {
			return errors.New("config: S3_BUCKET is required when MEDIA_BACKEND=s3")
		}
	default:
		return fmt.Errorf("config: unknown MEDIA_BACKEND %q", c.Media.Backend)
	}
	if c.AuthRate.PerMinute <= 0 || c.AuthRate.Burst <= 0 {
		return errors.New("config: AUTH_RATE_PER_MINUTE and AUTH_RATE_BURST must be positive")
	}
	return nil
}
