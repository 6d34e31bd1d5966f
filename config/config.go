// config/config.go - Environment configuration
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"3000"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER" envDefault:"postgres"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME" envDefault:"skillmatch"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`
	DBLogLevel  string `env:"DB_LOG_LEVEL" envDefault:"warn"`

	JWTSecret      string        `env:"JWT_SECRET"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
	CORSOrigins    string        `env:"CORS_ORIGINS" envDefault:"http://localhost:5173"`
	FrontendURL    string        `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	InviteExpiryDays int `env:"INVITE_EXPIRY_DAYS" envDefault:"7"`

	RedisURL           string `env:"REDIS_URL"`
	NotificationStream string `env:"NOTIFICATION_STREAM" envDefault:"skillmatch:invitations"`

	RateLimitEnabled      bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitMaxRequests  int           `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"100"`
	RateLimitWindow       time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	AcceptRateLimitMax    int           `env:"ACCEPT_RATE_LIMIT_MAX" envDefault:"10"`
	AcceptRateLimitWindow time.Duration `env:"ACCEPT_RATE_LIMIT_WINDOW" envDefault:"5m"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set (generate one with: openssl rand -base64 64)"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters long"))
	}
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver))
	}
	if c.InviteExpiryDays <= 0 {
		errs = append(errs, errors.New("INVITE_EXPIRY_DAYS must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DSN returns DATABASE_URL or a DSN assembled from the DB_* settings.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func (c *Config) InviteExpiry() time.Duration {
	return time.Duration(c.InviteExpiryDays) * 24 * time.Hour
}

// Warnings lists settings that work but look wrong for the environment.
func (c *Config) Warnings() []string {
	var out []string
	if c.IsProduction() {
		if c.CORSOrigins == "" || strings.Contains(c.CORSOrigins, "localhost") {
			out = append(out, "CORS_ORIGINS not properly configured for production")
		}
		if c.StoreDriver == StoreDriverMemory {
			out = append(out, "STORE_DRIVER=memory loses all data on restart")
		}
	}
	return out
}
