package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "HTTP_ADDR", "SESSION_CHECK_INTERVAL", "REQUEST_TIMEOUT",
		"PIN_MIN_LENGTH", "DEMO_SEED", "EVENTS_EXCHANGE", "OBJECT_STORE_ENDPOINT",
		"R2_S3_ENDPOINT", "R2_ACCOUNT_ID", "STAFF_JWT_SECRET",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Env != "development" || cfg.HTTPAddr != ":8087" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SessionCheckInterval != 5*time.Second || cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("unexpected intervals %v %v", cfg.SessionCheckInterval, cfg.RequestTimeout)
	}
	if cfg.PINMinLength != 3 || !cfg.DemoSeed || cfg.EventsExchange != "mesa.events" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ObjectStore().Enabled() {
		t.Fatalf("object store must be disabled by default")
	}
	if cfg.StaffJWTSecret != "" {
		t.Fatalf("staff secret must be empty by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_CHECK_INTERVAL", "750ms")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")
	t.Setenv("PIN_MIN_LENGTH", "-2")
	t.Setenv("DEMO_SEED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:19006, ,https://mesa.example.com")
	t.Setenv("OBJECT_STORE_ENDPOINT", "")
	t.Setenv("R2_S3_ENDPOINT", "")
	t.Setenv("R2_ACCOUNT_ID", "abc123")
	t.Setenv("STAFF_JWT_SECRET", " s3cret ")

	cfg := Load()
	if cfg.SessionCheckInterval != 750*time.Millisecond {
		t.Fatalf("unexpected interval %v", cfg.SessionCheckInterval)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("invalid durations must fall back, got %v", cfg.RequestTimeout)
	}
	if cfg.PINMinLength != 3 {
		t.Fatalf("non-positive pin length must fall back, got %d", cfg.PINMinLength)
	}
	if cfg.DemoSeed {
		t.Fatalf("expected demo seed disabled")
	}
	if cfg.StaffJWTSecret != "s3cret" {
		t.Fatalf("unexpected staff secret %q", cfg.StaffJWTSecret)
	}
	want := []string{"http://localhost:19006", "https://mesa.example.com"}
	if !reflect.DeepEqual(cfg.CorsAllowedOrigins, want) {
		t.Fatalf("expected %v, got %v", want, cfg.CorsAllowedOrigins)
	}
	if cfg.ObjectStoreEndpoint != "https://abc123.r2.cloudflarestorage.com" {
		t.Fatalf("unexpected endpoint %s", cfg.ObjectStoreEndpoint)
	}
}
