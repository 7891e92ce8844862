package sessionkit

import (
	"context"
	"fmt"
	"time"
)

// ProviderSession is the payload a successful provider call returns.
type ProviderSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Identity     Identity
}

// ProviderError is the provider-specific failure shape. Raw provider text
// lives only here; it is consumed by the [ErrorMapper] and never crosses the
// engine boundary.
type ProviderError struct {
	Code       string
	Message    string
	HTTPStatus int
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %s (http %d)", e.Code, e.HTTPStatus)
}

// IdentityProvider is the abstract identity-provider capability the engine
// drives. Implementations own the wire protocol, authentication backend, and
// timeout semantics; calls are expected to honor ctx cancellation.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*ProviderSession, error)
	SignInWithPassword(ctx context.Context, email, password string) (*ProviderSession, error)
	SignInWithFederatedToken(ctx context.Context, identityToken, nonce string) (*ProviderSession, error)
	SignOut(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) error
	RefreshSession(ctx context.Context, refreshToken string) (*ProviderSession, error)
	CurrentUser(ctx context.Context) (*Identity, error)
}

// Navigator receives navigation side effects from the [Bridge].
type Navigator interface {
	NavigateToAuthenticatedRoot() error
	NavigateToUnauthenticatedRoot() error
	CurrentRoute() string
}

// CacheInvalidator drops or re-primes cached user-scoped data on identity
// transitions.
type CacheInvalidator interface {
	ClearSensitiveEntries() error
	InvalidateUserScoped(identityID string) error
}

// SyncController pauses, resumes, and purges background synchronization work.
type SyncController interface {
	Pause() error
	Resume() error
	Purge(identityID string) error
}

// TimerController starts and stops identity-scoped application timers.
type TimerController interface {
	StopAll() error
	StartFor(identityID string) error
}
