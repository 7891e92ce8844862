package sessionkit

import (
	"time"
)

// IdentityOrigin records how an identity was first established. It is set at
// creation and never mutated afterwards.
type IdentityOrigin uint8

const (
	// OriginPassword marks identities created through email/password sign-up.
	OriginPassword IdentityOrigin = iota
	// OriginFederated marks identities created through a federated provider.
	OriginFederated
)

// Identity is an authenticated principal as reported by the identity
// provider. ID is opaque and immutable once issued.
type Identity struct {
	ID            string
	Email         string
	EmailVerified bool
	Origin        IdentityOrigin
	CreatedAt     time.Time
	LastSignInAt  time.Time
}

// Session is a live authorization grant: the two credential artifacts plus
// the absolute expiry of the short-lived one and the owning identity.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Identity     Identity
}

// Phase names the engine's position in the lifecycle state machine.
type Phase uint8

const (
	// PhaseAnonymous means no session is established.
	PhaseAnonymous Phase = iota
	// PhaseAuthenticating means a sign-up or sign-in call is in flight.
	PhaseAuthenticating
	// PhaseAuthenticated means a live session exists.
	PhaseAuthenticated
	// PhaseRefreshing means a session refresh is in flight.
	PhaseRefreshing
	// PhaseSigningOut means a sign-out is in progress.
	PhaseSigningOut
)

// String returns the lowercase phase name for logs.
func (p Phase) String() string {
	switch p {
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseRefreshing:
		return "refreshing"
	case PhaseSigningOut:
		return "signing_out"
	default:
		return "unknown"
	}
}

// AuthState is an immutable snapshot of the process-wide authentication
// status. The engine replaces the snapshot atomically on each transition;
// readers never observe a half-updated state.
type AuthState struct {
	Phase         Phase
	Authenticated bool
	Identity      *Identity
	Loading       bool
	LastError     error
}

// TransitionKind classifies a lifecycle transition.
type TransitionKind uint8

const (
	// TransitionLogin marks a successful session establishment.
	TransitionLogin TransitionKind = iota
	// TransitionLogout marks a session teardown. AutoLogout on the event
	// distinguishes forced teardown after a failed refresh.
	TransitionLogout
	// TransitionTokenRefresh marks a successful same-identity refresh.
	TransitionTokenRefresh
	// TransitionUserUpdate marks a targeted identity attribute change.
	TransitionUserUpdate
)

// String returns the lowercase transition name for logs.
func (k TransitionKind) String() string {
	switch k {
	case TransitionLogin:
		return "login"
	case TransitionLogout:
		return "logout"
	case TransitionTokenRefresh:
		return "token_refresh"
	case TransitionUserUpdate:
		return "user_update"
	default:
		return "unknown"
	}
}

// LifecycleEvent is a point-in-time transition handed to subscribers.
// Invariant: Identity is non-nil exactly when the transition leaves the
// engine authenticated; for TransitionLogout it is always nil.
type LifecycleEvent struct {
	ID         string
	Kind       TransitionKind
	Identity   *Identity
	Previous   *Identity
	AutoLogout bool
	At         time.Time
}

// IdentityChanged reports whether the event represents an identity change:
// the new principal's stable identifier differs from the previous one's.
func (ev LifecycleEvent) IdentityChanged() bool {
	if ev.Previous == nil || ev.Identity == nil {
		return false
	}
	return ev.Previous.ID != ev.Identity.ID
}
