// Package config loads the climbd settings from CLIMB_* environment variables.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"

	climb "github.com/goliatone/go-climb"
)

type Config struct {
	Addr            string        `env:"CLIMB_ADDR" envDefault:":5000"`
	DatabaseDSN     string        `env:"CLIMB_DATABASE_DSN"`
	JWTSecret       string        `env:"CLIMB_JWT_SECRET"`
	TokenTTL        time.Duration `env:"CLIMB_TOKEN_TTL" envDefault:"24h"`
	TokenIssuer     string        `env:"CLIMB_TOKEN_ISSUER" envDefault:"climb"`
	BcryptCost      int           `env:"CLIMB_BCRYPT_COST" envDefault:"10"`
	PasswordSkew    time.Duration `env:"CLIMB_PASSWORD_SKEW" envDefault:"1s"`
	ResetTTL        time.Duration `env:"CLIMB_RESET_TTL" envDefault:"10m"`
	ResetLinkLog    bool          `env:"CLIMB_RESET_LINK_LOG" envDefault:"false"`
	HashidUserIDs   bool          `env:"CLIMB_HASHID_USER_IDS" envDefault:"false"`
	LogLevel        string        `env:"CLIMB_LOG_LEVEL" envDefault:"info"`
	ServiceName     string        `env:"CLIMB_SERVICE_NAME" envDefault:"climbd"`
	OTelEndpoint    string        `env:"CLIMB_OTEL_ENDPOINT"`
	OTelEnabled     bool          `env:"CLIMB_OTEL_ENABLED" envDefault:"true"`
	ShutdownTimeout time.Duration `env:"CLIMB_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses the process environment. Missing or invalid values are reported
// as a single configuration error whose metadata names each variable.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := ParseEnv(cfg); err != nil {
		return nil, climb.NewConfigurationError(err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "parse env")
	}
	return nil
}

func (c *Config) Validate() error {
	err := validation.Errors{
		"CLIMB_JWT_SECRET":    validation.Validate(strings.TrimSpace(c.JWTSecret), validation.Required),
		"CLIMB_DATABASE_DSN":  validation.Validate(strings.TrimSpace(c.DatabaseDSN), validation.Required),
		"CLIMB_ADDR":          validation.Validate(c.Addr, validation.Required),
		"CLIMB_BCRYPT_COST":   validation.Validate(c.BcryptCost, validation.Min(4), validation.Max(31)),
		"CLIMB_TOKEN_TTL":     validation.Validate(int64(c.TokenTTL), validation.Min(int64(time.Second))),
		"CLIMB_RESET_TTL":     validation.Validate(int64(c.ResetTTL), validation.Min(int64(time.Second))),
		"CLIMB_PASSWORD_SKEW": validation.Validate(int64(c.PasswordSkew), validation.Min(int64(0))),
		"CLIMB_LOG_LEVEL":     validation.Validate(strings.ToLower(c.LogLevel), validation.In("debug", "info", "warn", "error")),
	}.Filter()
	if err == nil {
		return nil
	}

	fields := map[string]any{}
	if errs, ok := err.(validation.Errors); ok {
		for name, fieldErr := range errs {
			fields[name] = fieldErr.Error()
		}
	}

	return climb.NewConfigurationError("invalid configuration").WithMetadata(fields)
}

// SlogLevel maps LogLevel onto a slog level
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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
