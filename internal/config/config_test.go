package config_test

import (
	"testing"
	"time"

	"github.com/robertarktes/seatmap-engine/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HOLD_TTL", "HOLD_TTL_MIN", "HOLD_TTL_MAX", "SWEEP_INTERVAL", "RATE_LIMIT_PER_MINUTE", "MONGO_DB", "HTTP_ADDR", "CONFIRM_RETRY_DELAY"} {
		t.Setenv(key, "")
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HoldTTL != 10*time.Minute {
		t.Errorf("expected 10m hold ttl, got %s", cfg.HoldTTL)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("expected 30s sweep interval, got %s", cfg.SweepInterval)
	}
	if cfg.MongoDB != "tro" || cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.RateLimit != 60 {
		t.Errorf("expected rate limit 60, got %d", cfg.RateLimit)
	}
	if cfg.ConfirmRetry != 2*time.Second {
		t.Errorf("expected 2s confirm retry delay, got %s", cfg.ConfirmRetry)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HOLD_TTL", "90s")
	t.Setenv("SWEEP_INTERVAL", "5s")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "7")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HoldTTL != 90*time.Second || cfg.SweepInterval != 5*time.Second || cfg.RateLimit != 7 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"HOLD_TTL":              "ten minutes",
		"RATE_LIMIT_PER_MINUTE": "many",
		"SWEEP_INTERVAL":        "0s",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := config.Load(); err == nil {
				t.Errorf("expected error for %s=%q", key, val)
			}
		})
	}
}
