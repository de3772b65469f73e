package config

import (
	"errors"
	"fmt"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	UserStorePostgres = "postgres"
	UserStoreBadger   = "badger"
	UserStoreMemory   = "memory"
)

type Config struct {
	AppPort       string `env:"APP_PORT" envDefault:"8080" validate:"required,numeric"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info" validate:"loglevel"`
	SecureCookies bool   `env:"SECURE_COOKIES" envDefault:"true"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET" validate:"required_with=GitHubClientID"`
	GitHubRedirectURL  string `env:"GITHUB_REDIRECT_URL" validate:"required_with=GitHubClientID"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET" validate:"required_with=GoogleClientID"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL" validate:"required_with=GoogleClientID"`

	OIDCIssuer       string `env:"OIDC_ISSUER" validate:"omitempty,url"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID" validate:"required_with=OIDCIssuer"`
	OIDCClientSecret string `env:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL  string `env:"OIDC_REDIRECT_URL" validate:"required_with=OIDCIssuer"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0" validate:"gte=0"`

	UserStore        string        `env:"USER_STORE" envDefault:"postgres" validate:"oneof=postgres badger memory"`
	DatabaseDSN      string        `env:"DATABASE_DSN" validate:"required_if=UserStore postgres"`
	BadgerPath       string        `env:"BADGER_PATH" validate:"required_if=UserStore badger"`
	UserStoreLock    bool          `env:"USER_STORE_LOCK" envDefault:"false"`
	UserLockTTL      time.Duration `env:"USER_LOCK_TTL" envDefault:"5s" validate:"gt=0"`
	UpsertMaxRetries uint64        `env:"UPSERT_MAX_RETRIES" envDefault:"3"`
	UpsertRetryBase  time.Duration `env:"UPSERT_RETRY_BASE" envDefault:"50ms" validate:"gt=0"`

	ContentAPIURL       string        `env:"CONTENT_API_URL" validate:"omitempty,url"`
	ContentAccessToken  string        `env:"CONTENT_ACCESS_TOKEN"`
	ContentDocumentType string        `env:"CONTENT_DOCUMENT_TYPE" envDefault:"publication" validate:"required"`
	ContentPageSize     int           `env:"CONTENT_PAGE_SIZE" envDefault:"100" validate:"gte=1,lte=100"`
	ContentCacheTTL     time.Duration `env:"CONTENT_CACHE_TTL" envDefault:"10m" validate:"gte=0"`
}

// HasProvider reports whether at least one OAuth provider is configured.
// Only serving needs one, so Load does not require it.
func (c Config) HasProvider() bool {
	return c.GitHubClientID != "" || c.GoogleClientID != "" || c.OIDCIssuer != ""
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error", "fatal":
		return true
	}
	return false
}

func validate(cfg Config) error {
	v := validator.New()
	if err := v.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}

	if err := v.Struct(cfg); err != nil {
		return err
	}

	if cfg.UserStoreLock && cfg.RedisAddr == "" {
		return errors.New("USER_STORE_LOCK requires REDIS_ADDR")
	}

	return nil
}

// Load reads an optional .env file, then the environment, and validates
// the result.
func Load() (Config, error) {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}
