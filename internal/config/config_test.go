package config

import (
	"os"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	os.Setenv("MARKETDATA_CACHE_DIR", "/tmp/custom-cache")
	defer os.Unsetenv("MARKETDATA_CACHE_DIR")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CacheDir != "/tmp/custom-cache" {
		t.Fatalf("expected env override to win, got %q", cfg.CacheDir)
	}
}

func TestLoadRejectsZeroConcurrency(t *testing.T) {
	os.Setenv("MARKETDATA_MAX_CONCURRENCY", "0")
	defer os.Unsetenv("MARKETDATA_MAX_CONCURRENCY")

	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for zero concurrency")
	}
}

func TestVenueConfigValidateRejectsEmptyHost(t *testing.T) {
	v := VenueConfig{Host: "", RPS: 1, Burst: 1}
	if err := v.Validate(); err == nil {
		t.Fatal("expected error for empty host")
	}
}
