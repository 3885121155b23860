package infra

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/app_test")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "whsec_test")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.AppEnv != "development" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.WorkerConcurrency != 5 || cfg.WorkerPollInterval != 2*time.Second {
		t.Fatalf("worker defaults: %+v", cfg)
	}
	if cfg.QueueMaxAttempts != 3 || cfg.QueueVisibilityTimeout != 900*time.Second {
		t.Fatalf("queue defaults: %+v", cfg)
	}
	if cfg.GuestDailyLimit != 1 || cfg.FreeMonthlyLimit != 3 || cfg.ProMonthlyLimit != 30 {
		t.Fatalf("quota defaults: %+v", cfg)
	}
	if cfg.SunoModel != "V4_5" {
		t.Fatalf("suno model default: %q", cfg.SunoModel)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("missing DATABASE_URL accepted")
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("missing JWT_SECRET accepted")
	}
}

func TestLoadConfigWebhookSecretOptionalWithBypass(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("missing webhook secret accepted without bypass")
	}

	t.Setenv("PAYMENT_BYPASS", "true")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load with bypass: %v", err)
	}
	if !cfg.PaymentBypass {
		t.Fatal("bypass flag not applied")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WORKER_CONCURRENCY", "12")
	t.Setenv("QUEUE_BACKOFF_BASE_SECONDS", "7")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "90")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WorkerConcurrency != 12 || cfg.QueueBackoffBase != 7*time.Second || cfg.RateLimitPerMin != 90 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	if got := getEnvInt("SOME_INT", 42); got != 42 {
		t.Fatalf("getEnvInt = %d, want fallback 42", got)
	}
}
