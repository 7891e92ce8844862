package sessionkit

import (
	"errors"
	"time"
)

// Config carries every tuning knob of the engine. Configure once, treat as
// immutable after [Builder.Build].
type Config struct {
	Password  PasswordConfig
	RateLimit RateLimitConfig
	Token     TokenConfig
	Federated FederatedConfig
	Retry     RetryConfig
	Bridge    BridgeConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
PASSWORD POLICY CONFIG
====================================
*/

// PasswordConfig is the credential-shape policy enforced before any provider
// call. TargetLength feeds the advisory strength score, not the gate.
type PasswordConfig struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	TargetLength  int
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig tunes the sliding-window limiter guarding sign-up, sign-in,
// and password-reset attempts. Lockout duration grows as
// BaseLockout * BackoffMultiplier^(attempts - MaxAttempts), capped at
// MaxLockout.
type RateLimitConfig struct {
	Window            time.Duration
	MaxAttempts       int
	BaseLockout       time.Duration
	BackoffMultiplier float64
	MaxLockout        time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig tunes credential bookkeeping. RefreshLeadTime is how long
// before access-token expiry a refresh becomes due.
type TokenConfig struct {
	RefreshLeadTime time.Duration
	StorageKey      string
}

/*
====================================
FEDERATED SIGN-IN CONFIG
====================================
*/

// FederatedConfig tunes the federated sign-in flow. Issuer and Audience are
// matched exactly against identity-token claims. RelayDomains is the fixed
// set of provider-relay email domains.
type FederatedConfig struct {
	Issuer         string
	Audience       string
	RelayDomains   []string
	NonceTTL       time.Duration
	NonceFreshness time.Duration
}

/*
====================================
RETRY / BACKOFF CONFIG
====================================
*/

// RetryConfig tunes the delay computation the [ErrorMapper] attaches to
// retryable failures.
type RetryConfig struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxRetries int
}

/*
====================================
BRIDGE CONFIG
====================================
*/

// BridgeConfig tunes the identity coordination bridge. UnauthenticatedRoutes
// is the set of routes from which a Login transition may redirect; the bridge
// never overrides navigation away from any other route.
type BridgeConfig struct {
	UnauthenticatedRoutes []string
	PurgeOnLogout         bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig tunes the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline preset: 8+ character passwords with
// mixed classes, 5 attempts per 15-minute window, 5-minute refresh lead time,
// 10-minute nonce TTL with a 5-minute freshness window.
func DefaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			MinLength:    8,
			MaxLength:    128,
			RequireUpper: true,
			RequireLower: true,
			RequireDigit: true,
			TargetLength: 16,
		},
		RateLimit: RateLimitConfig{
			Window:            15 * time.Minute,
			MaxAttempts:       5,
			BaseLockout:       1 * time.Minute,
			BackoffMultiplier: 2,
			MaxLockout:        24 * time.Hour,
		},
		Token: TokenConfig{
			RefreshLeadTime: 5 * time.Minute,
			StorageKey:      "sessionkit.refresh",
		},
		Federated: FederatedConfig{
			RelayDomains:   []string{"privaterelay.appleid.com"},
			NonceTTL:       10 * time.Minute,
			NonceFreshness: 5 * time.Minute,
		},
		Retry: RetryConfig{
			BaseDelay:  2 * time.Second,
			Multiplier: 2,
			MaxRetries: 3,
		},
		Bridge: BridgeConfig{
			UnauthenticatedRoutes: []string{"/", "/signin", "/signup", "/welcome"},
			PurgeOnLogout:         true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// StrictConfig returns a hardened preset: tighter nonce windows, symbol
// requirement, and a smaller attempt budget.
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.MinLength = 12
	cfg.Password.RequireSymbol = true
	cfg.RateLimit.MaxAttempts = 3
	cfg.RateLimit.BaseLockout = 5 * time.Minute
	cfg.Federated.NonceTTL = 5 * time.Minute
	cfg.Federated.NonceFreshness = 2 * time.Minute
	return cfg
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Password.MinLength <= 0 {
		return errors.New("password min length must be positive")
	}
	if c.Password.MaxLength > 0 && c.Password.MaxLength < c.Password.MinLength {
		return errors.New("password max length below min length")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if c.RateLimit.MaxAttempts <= 0 {
		return errors.New("rate limit max attempts must be positive")
	}
	if c.RateLimit.BaseLockout <= 0 {
		return errors.New("rate limit base lockout must be positive")
	}
	if c.RateLimit.BackoffMultiplier < 1 {
		return errors.New("rate limit backoff multiplier below 1")
	}
	if c.Token.RefreshLeadTime <= 0 {
		return errors.New("token refresh lead time must be positive")
	}
	if c.Token.StorageKey == "" {
		return errors.New("token storage key must not be empty")
	}
	if c.Federated.NonceTTL <= 0 || c.Federated.NonceFreshness <= 0 {
		return errors.New("nonce windows must be positive")
	}
	if c.Federated.NonceFreshness > c.Federated.NonceTTL {
		return errors.New("nonce freshness window exceeds absolute ttl")
	}
	if c.Retry.BaseDelay <= 0 {
		return errors.New("retry base delay must be positive")
	}
	if c.Retry.Multiplier < 1 {
		return errors.New("retry multiplier below 1")
	}
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry max retries must not be negative")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive when audit is enabled")
	}
	return nil
}

func cloneConfig(c Config) Config {
	dup := c
	dup.Federated.RelayDomains = append([]string(nil), c.Federated.RelayDomains...)
	dup.Bridge.UnauthenticatedRoutes = append([]string(nil), c.Bridge.UnauthenticatedRoutes...)
	return dup
}
