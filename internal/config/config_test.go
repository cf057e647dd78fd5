package config

import "testing"

func TestValidateRequiresDatabaseURL(t *testing.T) {
	c := &Config{SessionSecret: "secret"}
	if err := c.Validate(); err == nil {
		t.Error("Validate() with no DatabaseURL should error")
	}
}

func TestValidateRequiresSessionSecret(t *testing.T) {
	c := &Config{DatabaseURL: "postgres://localhost/db"}
	if err := c.Validate(); err == nil {
		t.Error("Validate() with no SessionSecret should error")
	}
}

func TestValidatePasses(t *testing.T) {
	c := &Config{DatabaseURL: "postgres://localhost/db", SessionSecret: "secret"}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestLoadUsesEnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/inventory")
	t.Setenv("SESSION_SECRET", "test-secret")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("RESERVATION_TIMEOUT", "45m")
	t.Setenv("SEQUENCE_RETRY_MAX", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AppPort != 9090 {
		t.Errorf("AppPort = %d, want 9090", cfg.AppPort)
	}
	if cfg.ReservationTimeout.Minutes() != 45 {
		t.Errorf("ReservationTimeout = %v, want 45m", cfg.ReservationTimeout)
	}
	if cfg.SequenceRetryMax != 7 {
		t.Errorf("SequenceRetryMax = %d, want 7", cfg.SequenceRetryMax)
	}
}

func TestLoadFailsWithoutRequiredFields(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_SECRET", "")
	if _, err := Load(); err == nil {
		t.Error("Load() with no DATABASE_URL/SESSION_SECRET should error")
	}
}
