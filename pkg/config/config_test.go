package config

import (
	"errors"
	"net/netip"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr("8082") != ":8082" {
		t.Errorf("addr = %q, want :8082", cfg.Server.Addr("8082"))
	}
	if cfg.RateLimit.Requests != 100 || cfg.RateLimit.Window != time.Hour {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
	if cfg.Stripe.Currency != "eur" {
		t.Errorf("currency = %q", cfg.Stripe.Currency)
	}
	if cfg.Auth.CookieName != "jwt" {
		t.Errorf("cookie name = %q", cfg.Auth.CookieName)
	}
	if len(cfg.RateLimit.TrustedProxies) != 2 || !cfg.RateLimit.TrustedProxies[0].Contains(netip.MustParseAddr("127.0.0.1")) {
		t.Errorf("trusted proxies = %v", cfg.RateLimit.TrustedProxies)
	}
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("TRUSTED_PROXIES", "10.1.2.3, 172.16.0.0/12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []netip.Prefix{netip.MustParsePrefix("10.1.2.3/32"), netip.MustParsePrefix("172.16.0.0/12")}
	if !reflect.DeepEqual(cfg.RateLimit.TrustedProxies, want) {
		t.Errorf("trusted proxies = %v, want %v", cfg.RateLimit.TrustedProxies, want)
	}

	t.Setenv("TRUSTED_PROXIES", "gateway.local")
	if _, err := Load(); err == nil {
		t.Fatal("hostname accepted as trusted proxy")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("PORT", "9000")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("MAX_CONCURRENT_HASHES", "0")
	t.Setenv("FULFILLMENT_QUEUE_SIZE", "-3")
	t.Setenv("RATE_LIMIT_WINDOW", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.App.IsDevelopment() {
		t.Error("expected development")
	}
	if cfg.Server.Addr("8080") != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr("8080"))
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.Services.CORSOrigins, want) {
		t.Errorf("origins = %v, want %v", cfg.Services.CORSOrigins, want)
	}
	if cfg.Auth.MaxConcurrentHashes != 1 || cfg.Fulfillment.QueueSize != 1 {
		t.Errorf("lower bounds not applied: hashes=%d queue=%d", cfg.Auth.MaxConcurrentHashes, cfg.Fulfillment.QueueSize)
	}
	if cfg.RateLimit.Window != time.Hour {
		t.Errorf("bad duration should fall back, got %v", cfg.RateLimit.Window)
	}
}

func TestLoad_RejectsUnknownEnv(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for APP_ENV=staging")
	}
}

func TestValidate(t *testing.T) {
	if err := (AuthConfig{TokenTTL: time.Hour}).Validate(); !errors.Is(err, ErrMissingJWTSecret) {
		t.Errorf("auth: got %v", err)
	}
	if err := (AuthConfig{JWTSecret: "s"}).Validate(); err == nil {
		t.Error("auth: zero TTL accepted")
	}
	if err := (AuthConfig{JWTSecret: "s", TokenTTL: time.Hour}).Validate(); err != nil {
		t.Errorf("auth: %v", err)
	}
	if err := (StripeConfig{SecretKey: "sk"}).Validate(); !errors.Is(err, ErrMissingWebhookSecret) {
		t.Errorf("stripe: got %v", err)
	}
	if err := (StripeConfig{WebhookSecret: "wh"}).Validate(); !errors.Is(err, ErrMissingStripeKey) {
		t.Errorf("stripe: got %v", err)
	}
}
