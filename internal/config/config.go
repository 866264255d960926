package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds everything the server, worker and seeder read from the environment.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	Addr     string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL    string `env:"DATABASE_URL"`
	DBUser         string `env:"DB_USER"`
	DBPassword     string `env:"DB_PASSWORD"`
	DBHost         string `env:"DB_HOST" envDefault:"localhost"`
	DBPort         string `env:"DB_PORT" envDefault:"5432"`
	DBName         string `env:"DB_NAME" envDefault:"pta"`
	RunMigrations  bool   `env:"DB_MIGRATE" envDefault:"true"`
	MigrationTable string `env:"DB_MIGRATIONS_TABLE" envDefault:"schema_migrations"`

	AMQPURL string `env:"AMQP_URL"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	GenerationTTL time.Duration `env:"GENERATION_LOCK_TTL" envDefault:"3m"`

	LLMProvider  string        `env:"LLM_PROVIDER" envDefault:"anthropic"`
	LLMModel     string        `env:"LLM_MODEL" envDefault:"claude-sonnet-4-20250514"`
	LLMAPIKey    string        `env:"LLM_API_KEY"`
	LLMBaseURL   string        `env:"LLM_BASE_URL"`
	LLMTimeout   time.Duration `env:"LLM_TIMEOUT" envDefault:"90s"`
	LLMPerMinute int           `env:"LLM_REQUESTS_PER_MINUTE" envDefault:"20"`
	LLMMaxTokens int           `env:"LLM_MAX_TOKENS" envDefault:"4096"`

	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	FromEmail      string `env:"FROM_EMAIL" envDefault:"newsletter@localhost"`
	FromName       string `env:"FROM_NAME" envDefault:"PTA Newsletter"`

	// JWTSecret is required outside development.
	JWTSecret string `env:"JWT_SECRET"`
	SentryDSN string `env:"SENTRY_DSN"`

	DraftSchedule string `env:"DRAFT_SCHEDULE" envDefault:"0 18 * * 0"`
}

const devJWTSecret = "dev-only-insecure-secret"

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set when APP_ENV is not development")

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on OS environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "parsing environment")
	}
	if err := cfg.checkJWTSecret(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) checkJWTSecret() error {
	if c.IsDevelopment() {
		if c.JWTSecret == "" {
			c.JWTSecret = devJWTSecret
		}
		return nil
	}
	if c.JWTSecret == "" || c.JWTSecret == "change-me" || c.JWTSecret == devJWTSecret {
		return errors.Wrapf(ErrMissingJWTSecret, "APP_ENV=%s", c.Env)
	}
	return nil
}

// DSN prefers DATABASE_URL and falls back to the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=disable"
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// NewLogger builds the process logger: JSON in production, text otherwise.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
