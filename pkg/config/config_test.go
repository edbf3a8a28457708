package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SUBPAY_APP_ENV", "dev")
	t.Setenv("SUBPAY_DB_DSN", "postgres://localhost/subpay_test")
	t.Setenv("SUBPAY_JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.App.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.App.Port)
	}
	if cfg.Billing.PeriodDays != 30 {
		t.Fatalf("expected 30 day billing period, got %d", cfg.Billing.PeriodDays)
	}
	if cfg.Billing.Period() != 30*24*time.Hour {
		t.Fatalf("unexpected period duration %v", cfg.Billing.Period())
	}
	if cfg.Billing.OracleStaleAfter != time.Hour {
		t.Fatalf("expected 1h staleness window, got %v", cfg.Billing.OracleStaleAfter)
	}
	if cfg.Billing.StableTokenDecimals != 6 {
		t.Fatalf("expected 6 stable token decimals, got %d", cfg.Billing.StableTokenDecimals)
	}
}

func TestLoadRequiresDSN(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SUBPAY_DB_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DSN missing")
	}
}

func TestAppEnvHelpers(t *testing.T) {
	app := AppConfig{Env: "DEV"}
	if !app.IsDev() {
		t.Fatal("IsDev should be case insensitive")
	}
	app.Env = "prod"
	if !app.IsProd() {
		t.Fatal("IsProd should match prod")
	}
}
