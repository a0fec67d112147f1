package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithoutEnvFiles(),
		WithEnvMap(map[string]string{"FIRESTORE_PROJECT_ID": "demo-project"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("port = %q, want %q", cfg.Server.Port, defaultPort)
	}
	if cfg.Gateway.Timeout != defaultGatewayTimeout {
		t.Errorf("gateway timeout = %v, want %v", cfg.Gateway.Timeout, defaultGatewayTimeout)
	}
	if cfg.Gateway.Currency != defaultCurrency {
		t.Errorf("currency = %q, want %q", cfg.Gateway.Currency, defaultCurrency)
	}
	if cfg.PubSub.ProjectID != "demo-project" {
		t.Errorf("pubsub project = %q, want fallback to firestore project", cfg.PubSub.ProjectID)
	}
	if cfg.Catalog.CacheTTL != defaultCacheTTL {
		t.Errorf("cache ttl = %v, want %v", cfg.Catalog.CacheTTL, defaultCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithoutEnvFiles(),
		WithEnvMap(map[string]string{
			"FIRESTORE_PROJECT_ID": "demo-project",
			"PORT":                 "9090",
			"GATEWAY_TIMEOUT":      "3s",
			"PAYMENT_CURRENCY":     "USD",
			"REDIS_ADDR":           "localhost:6379",
			"REDIS_DB":             "2",
			"CATALOG_CACHE_TTL":    "1m",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Gateway.Timeout != 3*time.Second {
		t.Errorf("gateway timeout = %v, want 3s", cfg.Gateway.Timeout)
	}
	if cfg.Gateway.Currency != "USD" {
		t.Errorf("currency = %q, want USD", cfg.Gateway.Currency)
	}
	if cfg.Redis.DB != 2 {
		t.Errorf("redis db = %d, want 2", cfg.Redis.DB)
	}
	if cfg.Catalog.CacheTTL != time.Minute {
		t.Errorf("cache ttl = %v, want 1m", cfg.Catalog.CacheTTL)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(
		WithoutSystemEnv(),
		WithoutEnvFiles(),
		WithEnvMap(map[string]string{
			"GATEWAY_TIMEOUT":   "soon",
			"REDIS_DB":          "-1",
			"ORDER_EVENT_TOPIC": "order-events",
		}),
	)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	want := []string{"FIRESTORE_PROJECT_ID", "GATEWAY_TIMEOUT", "PUBSUB_PROJECT_ID", "REDIS_DB"}
	got := validation.Fields()
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fields = %v, want %v", got, want)
		}
	}
}
