package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	VenipakAPIURL          string `env:"VENIPAK_API_URL" envDefault:"https://go.venipak.lt/ws" validate:"required,url"`
	VenipakUsername        string `env:"VENIPAK_USERNAME"`
	VenipakPassword        string `env:"VENIPAK_PASSWORD"`
	VenipakAccountID       int    `env:"VENIPAK_ACCOUNT_ID" validate:"omitempty,gt=0"`
	VenipakFirstPackNumber int    `env:"VENIPAK_FIRST_PACK_NUMBER" envDefault:"1000000" validate:"gt=0"`

	// Optional override for the embedded shipping rate table.
	ShippingRatesPath string `env:"SHIPPING_RATES_PATH"`

	LabelStoreProvider string `env:"LABEL_STORE_PROVIDER" envDefault:"filesystem" validate:"omitempty,oneof=filesystem s3"`
	LabelDir           string `env:"LABEL_DIR" envDefault:"./labels"`
	S3Endpoint         string `env:"S3_ENDPOINT"`
	S3Region           string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket           string `env:"S3_BUCKET" validate:"required_if=LabelStoreProvider s3"`
	S3AccessKey        string `env:"S3_ACCESS_KEY" validate:"required_if=LabelStoreProvider s3"`
	S3SecretKey        string `env:"S3_SECRET_KEY" validate:"required_if=LabelStoreProvider s3"`
	S3UsePathStyle     bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`

	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"off" validate:"omitempty,oneof=off postmark mailgun resend"`
	EmailAPIKey   string `env:"EMAIL_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM" validate:"omitempty,email"`
	EmailDomain   string `env:"EMAIL_DOMAIN"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	TrackingPollInterval time.Duration `env:"TRACKING_POLL_INTERVAL" envDefault:"15m" validate:"min=1m"`
	TrackingPollEnabled  bool          `env:"TRACKING_POLL_ENABLED" envDefault:"true"`

	SentryDSN string `env:"SENTRY_DSN"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// VenipakConfigured reports whether the carrier integration has credentials.
// The service boots without them; shipment creation fails fast until they are set.
func (c *Config) VenipakConfigured() bool {
	return strings.TrimSpace(c.VenipakUsername) != "" &&
		strings.TrimSpace(c.VenipakPassword) != "" &&
		c.VenipakAccountID > 0
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	hasUsername := strings.TrimSpace(c.VenipakUsername) != ""
	hasPassword := strings.TrimSpace(c.VenipakPassword) != ""
	if hasUsername != hasPassword {
		return fmt.Errorf("VENIPAK_USERNAME and VENIPAK_PASSWORD must be set together")
	}
	if hasUsername && c.VenipakAccountID <= 0 {
		return fmt.Errorf("VENIPAK_ACCOUNT_ID is required when carrier credentials are set")
	}

	if parsed, err := url.Parse(c.VenipakAPIURL); err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("VENIPAK_API_URL must be a valid absolute URL")
	}

	if c.EmailProvider != "" && c.EmailProvider != "off" {
		if strings.TrimSpace(c.EmailAPIKey) == "" {
			return fmt.Errorf("EMAIL_API_KEY is required when EMAIL_PROVIDER is enabled")
		}
		if strings.TrimSpace(c.EmailFrom) == "" {
			return fmt.Errorf("EMAIL_FROM is required when EMAIL_PROVIDER is enabled")
		}
		if c.EmailProvider == "mailgun" && strings.TrimSpace(c.EmailDomain) == "" {
			return fmt.Errorf("EMAIL_DOMAIN is required for the mailgun provider")
		}
	}

	return nil
}
