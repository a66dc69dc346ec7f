package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "KoboPay"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultProviderTimeout = 30 * time.Second
	defaultReconcileEvery  = 5 * time.Minute
	defaultReconcileMinAge = 10 * time.Minute
)

// Provider carries the payment rail credentials and transport policy.
type Provider struct {
	BaseURL    string
	Token      string
	SigningKey string
	Timeout    time.Duration
}

// Webhook carries the inbound verification credentials.
type Webhook struct {
	Secret    string
	SharedKey string
}

// Reconcile controls the pending-payout reconciliation loop.
type Reconcile struct {
	Enabled  bool
	Interval time.Duration
	MinAge   time.Duration
}

// Config captures application runtime configuration loaded from environment
// variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	Provider       Provider
	Webhook        Webhook
	Reconcile      Reconcile
}

// Load reads configuration values from the environment (preloading a .env
// file when present) and populates a Config instance.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		Provider: Provider{
			BaseURL:    os.Getenv("PROVIDER_BASE_URL"),
			Token:      os.Getenv("PROVIDER_TOKEN"),
			SigningKey: os.Getenv("PROVIDER_SIGNING_KEY"),
			Timeout:    defaultProviderTimeout,
		},
		Webhook: Webhook{
			Secret:    os.Getenv("WEBHOOK_SECRET"),
			SharedKey: os.Getenv("WEBHOOK_SHARED_KEY"),
		},
		Reconcile: Reconcile{
			Enabled:  getEnv("RECONCILE_ENABLED", "true") == "true",
			Interval: defaultReconcileEvery,
			MinAge:   defaultReconcileMinAge,
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.Provider.Timeout, err = durationEnv("PROVIDER_TIMEOUT", cfg.Provider.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.Reconcile.Interval, err = durationEnv("RECONCILE_INTERVAL", cfg.Reconcile.Interval); err != nil {
		return Config{}, err
	}
	if cfg.Reconcile.MinAge, err = durationEnv("RECONCILE_MIN_AGE", cfg.Reconcile.MinAge); err != nil {
		return Config{}, err
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
		if cfg.Provider.BaseURL == "" || cfg.Provider.Token == "" || cfg.Provider.SigningKey == "" {
			return Config{}, fmt.Errorf("PROVIDER_BASE_URL, PROVIDER_TOKEN and PROVIDER_SIGNING_KEY must be set")
		}
		if cfg.Webhook.Secret == "" && cfg.Webhook.SharedKey == "" {
			return Config{}, fmt.Errorf("at least one of WEBHOOK_SECRET and WEBHOOK_SHARED_KEY must be set")
		}
	}

	return cfg, nil
}

// IsDev reports whether the app runs with dev fallbacks (in-memory backends).
func (c Config) IsDev() bool {
	env := strings.ToLower(c.AppEnv)
	return env == "development" || env == "dev" || env == "local"
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// durationEnv reads NAME as a Go duration or NAME_SECONDS as an integer,
// preferring the seconds form when both are set.
func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(name + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", name, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(name); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", name, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
