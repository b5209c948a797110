package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadClampsBadNumericValues(t *testing.T) {
	t.Setenv("TAX_RATE_PERCENT", "250")
	t.Setenv("PROMOTION_TTL_SECONDS", "-5")
	t.Setenv("STALE_HOLD_HOURS", "abc")

	cfg := Load()
	if cfg.TaxRatePercent != 10 {
		t.Fatalf("expected tax rate fallback 10, got %v", cfg.TaxRatePercent)
	}
	if cfg.PromotionTTLSeconds != 30 {
		t.Fatalf("expected promotion TTL fallback 30, got %d", cfg.PromotionTTLSeconds)
	}
	if cfg.StaleHoldHours != 24 {
		t.Fatalf("expected stale hold fallback 24, got %d", cfg.StaleHoldHours)
	}
}
