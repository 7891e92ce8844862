package federated

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State names an attempt's position in the per-attempt state machine:
// Started -> NonceIssued -> ResponseReceived -> {Validated -> Completed | Rejected}.
type State uint8

const (
	// StateStarted marks a freshly created attempt.
	StateStarted State = iota
	// StateNonceIssued marks an attempt whose challenge was handed out.
	StateNonceIssued
	// StateResponseReceived marks an attempt whose response arrived.
	StateResponseReceived
	// StateValidated marks an attempt that passed nonce and claims checks.
	StateValidated
	// StateCompleted is the successful terminal state.
	StateCompleted
	// StateRejected is the failed terminal state.
	StateRejected
)

var (
	// ErrAttemptUnknown indicates the response references no pending attempt.
	ErrAttemptUnknown = errors.New("sign-in attempt unknown")
	// ErrCancelled is the distinct terminal outcome for a user-cancelled
	// attempt. Not an error path with retry: callers silently return to the
	// prior screen.
	ErrCancelled = errors.New("sign-in cancelled")
	// ErrEmailMissing indicates a sign-up response carried no email address.
	ErrEmailMissing = errors.New("identity token carries no email")
)

// Config holds federated flow tuning parameters.
type Config struct {
	Claims       ClaimsConfig
	Nonce        NonceConfig
	RelayDomains []string
}

// Challenge is handed to the platform's federated sign-in UI: the anti-replay
// nonce must be embedded in the provider's identity token.
type Challenge struct {
	AttemptID string
	Nonce     string
	Purpose   Purpose
}

// Response is the raw outcome of the platform's federated sign-in UI.
type Response struct {
	AttemptID     string
	IdentityToken string
	Cancelled     bool
}

// Result is a fully validated federated sign-in, ready to hand to the
// identity provider's token exchange.
type Result struct {
	AttemptID     string
	IdentityToken string
	Nonce         string
	Subject       string
	Email         string
	EmailVerified bool
	Relay         RelayDescriptor
}

type attempt struct {
	purpose Purpose
	nonce   string
	state   State
}

// Flow drives federated sign-in attempts. Safe for concurrent use; each
// attempt is independent.
type Flow struct {
	mu       sync.Mutex
	attempts map[string]*attempt
	nonces   *NonceManager
	config   Config
	now      func() time.Time
}

// NewFlow creates a federated flow. The now function exists for tests; pass
// nil for time.Now.
func NewFlow(cfg Config, now func() time.Time) *Flow {
	if now == nil {
		now = time.Now
	}
	return &Flow{
		attempts: make(map[string]*attempt),
		nonces:   NewNonceManager(cfg.Nonce, now),
		config:   cfg,
		now:      now,
	}
}

// StartSignIn opens an attempt for the given purpose and returns its
// challenge. Expired leftovers from abandoned attempts are swept lazily here
// rather than by a timer.
func (f *Flow) StartSignIn(purpose Purpose) (*Challenge, error) {
	f.nonces.Sweep()

	nonce, err := f.nonces.Issue(purpose)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	f.mu.Lock()
	f.attempts[id] = &attempt{purpose: purpose, nonce: nonce, state: StateNonceIssued}
	f.mu.Unlock()

	return &Challenge{AttemptID: id, Nonce: nonce, Purpose: purpose}, nil
}

// HandleResponse consumes the attempt and validates the response: nonce
// first (single-use, purpose, both expiry windows), then identity-token
// claims. Every outcome is terminal; a rejected attempt cannot be replayed.
func (f *Flow) HandleResponse(resp Response, purpose Purpose) (*Result, error) {
	f.mu.Lock()
	att, ok := f.attempts[resp.AttemptID]
	if ok {
		delete(f.attempts, resp.AttemptID)
	}
	f.mu.Unlock()

	if !ok {
		return nil, ErrAttemptUnknown
	}
	att.state = StateResponseReceived

	if resp.Cancelled {
		att.state = StateRejected
		// Consume the nonce so the abandoned value cannot resurface.
		_ = f.nonces.Validate(att.nonce, att.purpose)
		return nil, ErrCancelled
	}

	if err := f.nonces.Validate(att.nonce, purpose); err != nil {
		att.state = StateRejected
		return nil, err
	}

	claims, err := ValidateToken(resp.IdentityToken, att.nonce, f.config.Claims, f.now)
	if err != nil {
		att.state = StateRejected
		return nil, err
	}
	att.state = StateValidated

	if purpose == PurposeSignUp && claims.Email == "" {
		att.state = StateRejected
		return nil, ErrEmailMissing
	}

	att.state = StateCompleted
	return &Result{
		AttemptID:     resp.AttemptID,
		IdentityToken: resp.IdentityToken,
		Nonce:         att.nonce,
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Relay:         DetectRelay(claims.Email, f.config.RelayDomains),
	}, nil
}

// PendingAttempts returns the count of open attempts. Test hook.
func (f *Flow) PendingAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}
