package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/djarekg/tampa-taffy/internal/errors"
)

const (
	// EnvProduction is the APP_ENV value that enables strict validation.
	EnvProduction = "production"

	// DevSecret signs tokens outside production when no secret is set.
	DevSecret = "tampa-dev-secret"
)

// Config holds every environment-driven setting.
type Config struct {
	Env               string        `env:"APP_ENV,default=development"`
	Port              int           `env:"PORT,default=4000"`
	DatabaseURL       string        `env:"DATABASE_URL,default=tampa.db"`
	AccessTokenSecret string        `env:"ACCESS_TOKEN_SECRET"`
	CORSOrigin        string        `env:"CORS_ORIGIN,default=http://localhost:5173"`
	TokenTTL          time.Duration `env:"TOKEN_TTL,default=1h"`
	SearchRate        float64       `env:"SEARCH_RATE,default=5"`
	SearchBurst       int           `env:"SEARCH_BURST,default=10"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
	LogFormat         string        `env:"LOG_FORMAT,default=text"`
	APIURL            string        `env:"API_URL,default=http://localhost:4000"`
}

// Load reads the given .env files (or ./.env when none are named), decodes
// the environment and validates the result. Missing .env files are ignored.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.New(errors.CodeConfigInvalid).
			WithDetail("Failed to read .env file").
			Wrap(err)
	}
	return FromEnv()
}

// FromEnv decodes the current environment without touching .env files.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !stderrors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, errors.New(errors.CodeConfigInvalid).Wrap(err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = "development"
	}
	if c.AccessTokenSecret == "" && !c.IsProduction() {
		c.AccessTokenSecret = DevSecret
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) *errors.Error {
		return errors.New(errors.CodeConfigInvalid).WithDetailf(format, args...)
	}
	switch {
	case c.Port < 0 || c.Port > 65535:
		return invalid("PORT must be between 0 and 65535, got %d", c.Port)
	case c.AccessTokenSecret == "":
		return invalid("ACCESS_TOKEN_SECRET is required when APP_ENV=%s", c.Env).
			WithSuggestion("Export ACCESS_TOKEN_SECRET or add it to .env")
	case c.TokenTTL <= 0:
		return invalid("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	case c.SearchRate <= 0:
		return invalid("SEARCH_RATE must be positive, got %g", c.SearchRate)
	case c.SearchBurst < 1:
		return invalid("SEARCH_BURST must be at least 1, got %d", c.SearchBurst)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return invalid("%s", err)
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Addr returns the listen address for the API server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Level returns the slog level named by LOG_LEVEL.
func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

// NewLogger builds a logger writing to w in the configured format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not a log level", s)
	}
	return l, nil
}
