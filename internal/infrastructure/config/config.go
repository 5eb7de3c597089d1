package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET, required"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Reset ResetConfig
	Store StoreConfig
	Redis RedisConfig
}

// ResetConfig tunes the password reset handshake.
type ResetConfig struct {
	TTL           time.Duration `env:"RESET_TTL,       default=1h"`
	Throttle      time.Duration `env:"RESET_THROTTLE,  default=1m"`
	LinkBase      string        `env:"RESET_LINK_BASE, default=http://localhost:8080/password/reset"`
	NotifyWorkers int           `env:"NOTIFY_WORKERS,  default=4"`
	BcryptCost    int           `env:"BCRYPT_COST,     default=10"`
}

// StoreConfig selects the identity store backend.
type StoreConfig struct {
	Driver      string `env:"STORE_DRIVER, default=sqlite"`
	DatabaseURL string `env:"DATABASE_URL, default=file:accounts.db"`
	MongoURI    string `env:"MONGO_URI,    default=mongodb://localhost:27017"`
	MongoDB     string `env:"MONGO_DB,     default=accounts"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET must not be empty")
	}
	switch cfg.Store.Driver {
	case "sqlite", "postgres", "mongo":
	default:
		return nil, fmt.Errorf("config: unsupported STORE_DRIVER %q", cfg.Store.Driver)
	}
	return &cfg, nil
}

// Development reports whether the service runs outside production.
func (c *Config) Development() bool {
	return c.Env == "development" || c.Env == "dev" || c.Env == "local"
}
