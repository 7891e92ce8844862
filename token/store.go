// Package token owns the two credential artifacts and their expiry
// bookkeeping. The access token is volatile and in-memory only; the refresh
// token lives in a durable secure store and never only in memory. The
// asymmetry is a security boundary: the short-lived artifact is cheap to
// reissue, the long-lived one must survive restarts while minimizing
// exposure.
package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ErrStorageUnavailable indicates the durable secure store failed. Surfaced,
// never swallowed: a refresh token that silently failed to persist would
// strand the session on the next process start.
var ErrStorageUnavailable = errors.New("secure storage unavailable")

// SecureStore is the platform-secured durable key/value capability. A missing
// key reads as ("", nil).
type SecureStore interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Clear(ctx context.Context, key string) error
}

// Config holds token store tuning parameters.
type Config struct {
	// RefreshLeadTime is how long before expiry a refresh becomes due.
	RefreshLeadTime time.Duration
	// StorageKey is the secure-store key for the refresh token. The expiry
	// instant is persisted beside it so a cold start can reschedule.
	StorageKey string
}

// Store holds the credential artifacts. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	secure SecureStore
	config Config
	now    func() time.Time

	access      string
	expiresAt   time.Time
	haveSession bool
}

// NewStore creates a token store backed by the given secure store. The now
// function exists for tests; pass nil for time.Now.
func NewStore(secure SecureStore, cfg Config, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{secure: secure, config: cfg, now: now}
}

func (s *Store) expiryKey() string {
	return s.config.StorageKey + ".expires_at"
}

// SetTokens commits both artifacts: access token in memory, refresh token and
// expiry in the secure store. A durable write failure leaves the in-memory
// state untouched and surfaces as ErrStorageUnavailable.
func (s *Store) SetTokens(ctx context.Context, access, refresh string, expiresAt time.Time) error {
	if err := s.secure.Set(ctx, s.config.StorageKey, refresh); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := s.secure.Set(ctx, s.expiryKey(), strconv.FormatInt(expiresAt.Unix(), 10)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	s.access = access
	s.expiresAt = expiresAt
	s.haveSession = true
	s.mu.Unlock()
	return nil
}

// AccessToken returns the in-memory access token. Synchronous by contract:
// the hot path must not touch durable storage.
func (s *Store) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveSession || s.access == "" {
		return "", false
	}
	return s.access, true
}

// RefreshToken reads the durable refresh token. Returns ("", nil) when none
// is stored.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	value, err := s.secure.Get(ctx, s.config.StorageKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return value, nil
}

// Clear drops both artifacts. The in-memory state is cleared even when the
// durable delete fails, so a local sign-out always takes effect.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.access = ""
	s.expiresAt = time.Time{}
	s.haveSession = false
	s.mu.Unlock()

	if err := s.secure.Clear(ctx, s.config.StorageKey); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := s.secure.Clear(ctx, s.expiryKey()); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Load hydrates expiry bookkeeping from the secure store after a process
// start. Reports whether a durable refresh token exists.
func (s *Store) Load(ctx context.Context) (bool, error) {
	refresh, err := s.secure.Get(ctx, s.config.StorageKey)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if refresh == "" {
		return false, nil
	}

	var expiresAt time.Time
	raw, err := s.secure.Get(ctx, s.expiryKey())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if raw != "" {
		if unix, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			expiresAt = time.Unix(unix, 0)
		}
	}

	s.mu.Lock()
	s.expiresAt = expiresAt
	s.haveSession = true
	s.mu.Unlock()
	return true, nil
}

// ExpiresAt returns the absolute access-token expiry instant.
func (s *Store) ExpiresAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt, s.haveSession && !s.expiresAt.IsZero()
}

// AccessTokenExpired reports whether the access token's validity window has
// passed. An unknown expiry counts as expired.
func (s *Store) AccessTokenExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveSession || s.expiresAt.IsZero() {
		return true
	}
	return !s.now().Before(s.expiresAt)
}

// ShouldRefresh reports whether the remaining lifetime is at or below the
// configured lead time.
func (s *Store) ShouldRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveSession {
		return false
	}
	if s.expiresAt.IsZero() {
		// Durable token with unknown expiry: refresh eagerly.
		return true
	}
	return s.expiresAt.Sub(s.now()) <= s.config.RefreshLeadTime
}

// TimeToRefresh returns the duration until the refresh threshold, clamped to
// >= 0.
func (s *Store) TimeToRefresh() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveSession || s.expiresAt.IsZero() {
		return 0
	}
	remaining := s.expiresAt.Sub(s.now()) - s.config.RefreshLeadTime
	if remaining < 0 {
		return 0
	}
	return remaining
}
