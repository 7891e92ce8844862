package sessionkit

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestStrictConfigValidAndTighter(t *testing.T) {
	strict := StrictConfig()
	if err := strict.Validate(); err != nil {
		t.Fatalf("StrictConfig().Validate() = %v", err)
	}

	base := DefaultConfig()
	if strict.Password.MinLength <= base.Password.MinLength {
		t.Fatal("strict password policy not tighter than default")
	}
	if strict.RateLimit.MaxAttempts >= base.RateLimit.MaxAttempts {
		t.Fatal("strict attempt budget not tighter than default")
	}
	if strict.Federated.NonceFreshness >= base.Federated.NonceFreshness {
		t.Fatal("strict nonce freshness not tighter than default")
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero min length", func(c *Config) { c.Password.MinLength = 0 }},
		{"max below min", func(c *Config) { c.Password.MaxLength = 4 }},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"zero attempts", func(c *Config) { c.RateLimit.MaxAttempts = 0 }},
		{"zero base lockout", func(c *Config) { c.RateLimit.BaseLockout = 0 }},
		{"shrinking backoff", func(c *Config) { c.RateLimit.BackoffMultiplier = 0.5 }},
		{"zero lead time", func(c *Config) { c.Token.RefreshLeadTime = 0 }},
		{"empty storage key", func(c *Config) { c.Token.StorageKey = "" }},
		{"zero nonce ttl", func(c *Config) { c.Federated.NonceTTL = 0 }},
		{"freshness beyond ttl", func(c *Config) { c.Federated.NonceFreshness = c.Federated.NonceTTL + time.Minute }},
		{"zero retry delay", func(c *Config) { c.Retry.BaseDelay = 0 }},
		{"shrinking retry", func(c *Config) { c.Retry.Multiplier = 0.5 }},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }},
		{"audit without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}

func TestCloneConfigDetachesSlices(t *testing.T) {
	original := DefaultConfig()
	clone := cloneConfig(original)

	clone.Federated.RelayDomains[0] = "mutated.example.com"
	clone.Bridge.UnauthenticatedRoutes[0] = "/mutated"

	if original.Federated.RelayDomains[0] == "mutated.example.com" {
		t.Fatal("relay domains shared between clone and original")
	}
	if original.Bridge.UnauthenticatedRoutes[0] == "/mutated" {
		t.Fatal("routes shared between clone and original")
	}
}
