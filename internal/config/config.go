package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	// StateSigningSecret is the HMAC key binding OAuth state parameters to a
	// user/dealership context. The process refuses to start without it.
	StateSigningSecret string `env:"STATE_SIGNING_SECRET"`
	EncryptionKey      string `env:"ENCRYPTION_KEY"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	OAuthRedirectBase  string `env:"OAUTH_REDIRECT_BASE" envDefault:""`

	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
	SessionSecret     string `env:"SESSION_SECRET"`

	IntegrityScanMinutes int    `env:"INTEGRITY_SCAN_MINUTES" envDefault:"60"`
	IntegrityAutoFix     bool   `env:"INTEGRITY_AUTO_FIX" envDefault:"false"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IntegrityScanInterval() time.Duration {
	return time.Duration(c.IntegrityScanMinutes) * time.Minute
}

func (c *Config) Validate(isProduction bool) error {
	// Missing signing secret is a fatal configuration error, not a silent
	// fallback: an unsigned state parameter would be forgeable.
	if c.StateSigningSecret == "" {
		return fmt.Errorf("STATE_SIGNING_SECRET is required (generate with: openssl rand -base64 32)")
	}

	if c.AdminPasswordHash != "" {
		if !strings.HasPrefix(c.AdminPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2y$") {
			return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <password>)")
		}
	}

	if isProduction {
		if err := validateSecret("STATE_SIGNING_SECRET", c.StateSigningSecret); err != nil {
			return err
		}
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}

		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: provider credentials will not be encrypted at rest")
		}
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
			log.Warn().Msg("Google OAuth client is not configured: connect endpoints will be disabled")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
