package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	JWTSecret      string
	StoragePath    string
	StorageBaseURL string
	GeoIPDBPath    string

	SunoAPIKey      string
	SunoBaseURL     string
	SunoModel       string
	SunoCallbackURL string

	GenerationCallbackSecret string
	PaymentWebhookSecret     string
	PaymentBypass            bool

	WorkerConcurrency     int
	WorkerPollInterval    time.Duration
	WorkerMaxPollAttempts int

	QueueMaxAttempts       int
	QueueBackoffBase       time.Duration
	QueueVisibilityTimeout time.Duration

	GuestDailyLimit  int
	FreeMonthlyLimit int
	ProMonthlyLimit  int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),

		SunoAPIKey:      os.Getenv("SUNO_API_KEY"),
		SunoBaseURL:     getEnv("SUNO_BASE_URL", "https://api.sunoapi.org/api/v1"),
		SunoModel:       getEnv("SUNO_MODEL", "V4_5"),
		SunoCallbackURL: os.Getenv("SUNO_CALLBACK_URL"),

		GenerationCallbackSecret: os.Getenv("GENERATION_CALLBACK_SECRET"),
		PaymentWebhookSecret:     os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		PaymentBypass:            getEnvBool("PAYMENT_BYPASS", false),

		WorkerConcurrency:     getEnvInt("WORKER_CONCURRENCY", 5),
		WorkerPollInterval:    time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),
		WorkerMaxPollAttempts: getEnvInt("WORKER_MAX_POLL_ATTEMPTS", 300),

		QueueMaxAttempts:       getEnvInt("QUEUE_MAX_ATTEMPTS", 3),
		QueueBackoffBase:       time.Second * time.Duration(getEnvInt("QUEUE_BACKOFF_BASE_SECONDS", 5)),
		QueueVisibilityTimeout: time.Second * time.Duration(getEnvInt("QUEUE_VISIBILITY_TIMEOUT_SECONDS", 900)),

		GuestDailyLimit:  getEnvInt("GUEST_DAILY_LIMIT", 1),
		FreeMonthlyLimit: getEnvInt("FREE_MONTHLY_LIMIT", 3),
		ProMonthlyLimit:  getEnvInt("PRO_MONTHLY_LIMIT", 30),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.PaymentWebhookSecret == "" && !cfg.PaymentBypass {
		return nil, fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required unless PAYMENT_BYPASS is enabled")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
