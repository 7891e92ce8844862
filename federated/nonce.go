// Package federated implements the federated sign-in flow: anti-replay
// nonces, identity-token claims validation, relay email detection, and the
// account-linking sub-flow.
package federated

import (
	"errors"
	"sync"
	"time"

	"github.com/halcyonlabs/sessionkit/internal"
)

// Purpose tags a nonce with the flow that issued it. Validation fails closed
// on a purpose mismatch.
type Purpose string

const (
	// PurposeSignIn tags nonces issued for sign-in attempts.
	PurposeSignIn Purpose = "signin"
	// PurposeSignUp tags nonces issued for sign-up attempts.
	PurposeSignUp Purpose = "signup"
	// PurposeLink tags nonces issued for account-linking attempts.
	PurposeLink Purpose = "link"
)

var (
	// ErrNonceUnknown indicates the nonce was never issued or already
	// consumed. Single-use is enforced by deletion on first validation.
	ErrNonceUnknown = errors.New("nonce unknown or already consumed")
	// ErrNonceExpired indicates the freshness or absolute window elapsed.
	ErrNonceExpired = errors.New("nonce expired")
	// ErrNoncePurpose indicates the nonce was issued for a different flow.
	ErrNoncePurpose = errors.New("nonce purpose mismatch")
)

// NonceConfig holds the two expiry windows measured from issuance. Freshness
// is the tighter validation window; TTL is the absolute bound used by the
// lazy sweep.
type NonceConfig struct {
	TTL       time.Duration
	Freshness time.Duration
}

type issuedNonce struct {
	purpose  Purpose
	issuedAt time.Time
}

// NonceManager issues and validates single-use anti-replay nonces. Expiry is
// enforced by timestamp comparison at validation time, not by a timer, so an
// idle process pays nothing.
type NonceManager struct {
	mu     sync.Mutex
	nonces map[string]issuedNonce
	config NonceConfig
	now    func() time.Time
}

// NewNonceManager creates a nonce manager. The now function exists for
// tests; pass nil for time.Now.
func NewNonceManager(cfg NonceConfig, now func() time.Time) *NonceManager {
	if now == nil {
		now = time.Now
	}
	return &NonceManager{
		nonces: make(map[string]issuedNonce),
		config: cfg,
		now:    now,
	}
}

// Issue mints a cryptographically random nonce tagged with the purpose.
func (m *NonceManager) Issue(purpose Purpose) (string, error) {
	value, err := internal.NewNonce()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.nonces[value] = issuedNonce{purpose: purpose, issuedAt: m.now()}
	m.mu.Unlock()
	return value, nil
}

// Validate consumes the nonce and checks purpose and both expiry windows.
// The nonce is deleted whether validation succeeds or fails: a value
// presented once can never be presented again.
func (m *NonceManager) Validate(value string, purpose Purpose) error {
	m.mu.Lock()
	entry, ok := m.nonces[value]
	if ok {
		delete(m.nonces, value)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNonceUnknown
	}

	age := m.now().Sub(entry.issuedAt)
	if age > m.config.TTL || age > m.config.Freshness {
		return ErrNonceExpired
	}
	if entry.purpose != purpose {
		return ErrNoncePurpose
	}
	return nil
}

// Sweep removes nonces past their absolute expiry. Complements the eager
// delete-on-validation for attempts that never complete.
func (m *NonceManager) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for value, entry := range m.nonces {
		if now.Sub(entry.issuedAt) > m.config.TTL {
			delete(m.nonces, value)
		}
	}
}

// Pending returns the count of outstanding nonces. Test hook.
func (m *NonceManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nonces)
}
