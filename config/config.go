package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	TickIntervalSec   int `env:"TICK_INTERVAL_SEC" envDefault:"60" validate:"min=1,max=3600"`
	ReaperIntervalSec int `env:"REAPER_INTERVAL_SEC" envDefault:"300" validate:"min=1,max=3600"`
	RunGraceMinutes   int `env:"RUN_GRACE_MINUTES" envDefault:"5" validate:"min=1,max=120"`
	FetchWindowHours  int `env:"FETCH_WINDOW_HOURS" envDefault:"24" validate:"min=1,max=168"`

	FetchTimeoutSec   int `env:"FETCH_TIMEOUT_SEC" envDefault:"15" validate:"min=1,max=120"`
	SummaryTimeoutSec int `env:"SUMMARY_TIMEOUT_SEC" envDefault:"60" validate:"min=1,max=300"`
	DeliverTimeoutSec int `env:"DELIVER_TIMEOUT_SEC" envDefault:"30" validate:"min=1,max=120"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	// VCSToken is the process-wide fallback code-host token used when a
	// repository carries no credential of its own.
	VCSToken string `env:"VCS_TOKEN"`

	// AESMasterKeyBase64 is the 32-byte (base64-encoded) key internal/crypto
	// derives per-repository credential keys from.
	AESMasterKeyBase64 string `env:"AES_MASTER_KEY_BASE64,required" validate:"required"`

	AnthropicAPIKey      string `env:"ANTHROPIC_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	AnthropicModel       string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-20241022"`
	LLMMinIntervalMillis int    `env:"LLM_MIN_INTERVAL_MS" envDefault:"2000" validate:"min=0"`

	SMTPProvider string `env:"SMTP_PROVIDER" envDefault:"gmail" validate:"omitempty,oneof=gmail zoho"`
	SMTPUsername string `env:"SMTP_USERNAME" validate:"required_if=Env production,required_if=Env staging"`
	SMTPPassword string `env:"SMTP_PASSWORD" validate:"required_if=Env production,required_if=Env staging"`
	SMTPFrom     string `env:"SMTP_FROM" validate:"required_if=Env production,required_if=Env staging"`

	// JWTSecret verifies the pre-validated principal JWT the C9 hooks expect
	// on incoming requests (HS256, subject = opaque principal ID).
	JWTSecret string `env:"JWT_SECRET" validate:"required_if=Env production,required_if=Env staging"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
