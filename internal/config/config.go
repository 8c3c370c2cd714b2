package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Config holds the relay server settings. Values come from the process
// environment, optionally seeded from a .env file in the working directory.
type Config struct {
	Addr              string        `env:"ADDR" envDefault:":8080" validate:"required"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:"," validate:"min=1,dive,required"`
	SendBuffer        int           `env:"SEND_BUFFER" envDefault:"64" validate:"min=1"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	PongWait          time.Duration `env:"PONG_WAIT" envDefault:"60s" validate:"gt=0"`
	MaxMessageBytes   int64         `env:"MAX_MESSAGE_BYTES" envDefault:"65536" validate:"min=512"`
	MessagesPerSecond float64       `env:"MESSAGES_PER_SECOND" envDefault:"10" validate:"gt=0"`
	MessageBurst      int           `env:"MESSAGE_BURST" envDefault:"20" validate:"min=1"`
	ConnectRatePerMin int           `env:"CONNECT_RATE_PER_MIN" envDefault:"120" validate:"min=1"`
	RateLimitKeys     int           `env:"RATE_LIMIT_KEYS" envDefault:"10000" validate:"min=1"`
	TrustProxyHeaders bool          `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
	AuditPath         string        `env:"AUDIT_PATH"`
	AuditSQLite       string        `env:"AUDIT_SQLITE"`
}

// Load reads .env (if present) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.AuditPath != "" && c.AuditSQLite != "" {
		return fmt.Errorf("invalid config: AUDIT_PATH and AUDIT_SQLITE are mutually exclusive")
	}
	return nil
}

// PingPeriod is how often the server pings; it must stay below PongWait.
func (c Config) PingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

func (c Config) SlogLevel() slog.Level {
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

func (c Config) AllowsAnyOrigin() bool {
	return lo.Contains(c.AllowedOrigins, "*")
}

// OriginAllowed matches an Origin header against the allow list. Requests
// without an Origin header are not from a browser and are accepted.
func (c Config) OriginAllowed(origin string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" || c.AllowsAnyOrigin() {
		return true
	}
	return lo.ContainsBy(c.AllowedOrigins, func(allowed string) bool {
		return strings.EqualFold(strings.TrimRight(strings.TrimSpace(allowed), "/"), strings.TrimRight(origin, "/"))
	})
}
