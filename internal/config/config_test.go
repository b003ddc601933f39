package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "")
	t.Setenv("STORAGE_ALLOWED_EXTENSIONS", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.AccessTokenTTLMinutes != 24*60 {
		t.Fatalf("expected one day token ttl, got %d", cfg.Auth.AccessTokenTTLMinutes)
	}
	if cfg.Storage.MaxFileSizeBytes != 10*1024*1024 {
		t.Fatalf("unexpected max file size %d", cfg.Storage.MaxFileSizeBytes)
	}
	if len(cfg.Storage.AllowedExtensions) != 8 {
		t.Fatalf("expected 8 default extensions, got %v", cfg.Storage.AllowedExtensions)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Fatalf("kafka should be disabled by default, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("STORAGE_ALLOWED_EXTENSIONS", ".png,.pdf")
	t.Setenv("AUTH_LOCKOUT_THRESHOLD", "not-a-number")
	t.Setenv("CACHE_LOOKUP_TTL_SECONDS", "60")
	t.Setenv("CACHE_KEY_PREFIX", "staging:")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Kafka.Brokers; len(got) != 2 || got[0] != "k1:9092" || got[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
	if got := cfg.Storage.AllowedExtensions; len(got) != 2 || got[1] != ".pdf" {
		t.Fatalf("unexpected extensions %v", got)
	}
	if cfg.Auth.LockoutThreshold != 5 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.Auth.LockoutThreshold)
	}
	if cfg.Cache.LookupTTL() != time.Minute {
		t.Fatalf("unexpected lookup ttl %v", cfg.Cache.LookupTTL())
	}
	if cfg.Cache.KeyPrefix != "staging:" {
		t.Fatalf("unexpected key prefix %q", cfg.Cache.KeyPrefix)
	}
}

func TestValidateRejectsDefaultSecretInProduction(t *testing.T) {
	cfg := &Config{
		App:     AppConfig{Env: "production"},
		Auth:    AuthConfig{JWTSecret: defaultJWTSecret},
		Storage: StorageConfig{MaxFileSizeBytes: 1},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for default secret in production")
	}
	cfg.Auth.JWTSecret = "something-long-and-random"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmailEnabled(t *testing.T) {
	if (EmailConfig{}).Enabled() {
		t.Fatal("empty host should disable email")
	}
	if !(EmailConfig{Host: "smtp.example.com"}).Enabled() {
		t.Fatal("host should enable email")
	}
}
