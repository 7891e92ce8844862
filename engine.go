package sessionkit

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/sessionkit/federated"
	"github.com/halcyonlabs/sessionkit/internal"
	"github.com/halcyonlabs/sessionkit/internal/rate"
	"github.com/halcyonlabs/sessionkit/token"
	"github.com/halcyonlabs/sessionkit/validate"
)

// Engine is the session lifecycle state machine. It is the only component
// that mutates the process-wide [AuthState]; everything else reads snapshots
// or reacts to transitions.
//
// Engines are built once through [Builder.Build] and are safe for concurrent
// use afterwards. Transition listeners must not invoke lifecycle operations
// from inside their callback.
type Engine struct {
	config   Config
	provider IdentityProvider
	tokens   *token.Store
	limiter  *rate.Limiter
	mapper   *ErrorMapper
	flow     *federated.Flow
	linker   *federated.Linker
	bus      *transitionBus
	audit    *auditDispatcher
	metrics  *Metrics
	policy   validate.PasswordPolicy

	now      func() time.Time
	schedule func(d time.Duration, fn func()) (cancel func())

	// mu serializes lifecycle transitions: state commit, timer handling,
	// and event emission happen under it so transitions form a queue.
	mu            sync.Mutex
	identity      *Identity
	cancelRefresh func()

	state      atomic.Pointer[AuthState]
	refreshing atomic.Bool
	closed     atomic.Bool
}

// AuthState returns the current immutable snapshot.
func (e *Engine) AuthState() AuthState {
	if s := e.state.Load(); s != nil {
		return *s
	}
	return AuthState{Phase: PhaseAnonymous}
}

// OnTransition registers a lifecycle listener and returns its unsubscribe
// function. Listener failures are captured and reported, never propagated.
func (e *Engine) OnTransition(listener TransitionListener) func() {
	return e.bus.subscribe(listener)
}

// PasswordStrength scores a candidate password 0-100 for UI feedback. It is
// advisory and independent of the sign-up gate.
func (e *Engine) PasswordStrength(password string) int {
	return e.policy.Strength(password)
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	return e.metrics.Snapshot()
}

// AuditDropped returns how many audit events the dispatcher discarded.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// Close cancels the pending auto-refresh timer and stops the audit
// dispatcher. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.mu.Lock()
	e.cancelRefreshLocked()
	e.mu.Unlock()
	e.audit.Close()
}

// SignUp validates the credentials, consults the rate limiter, and creates a
// new account with the provider. On success the session is committed and a
// Login transition is emitted.
func (e *Engine) SignUp(ctx context.Context, email, password string) (*Session, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	key := validate.NormalizeEmail(email)

	if err := validate.Email(email); err != nil {
		return nil, e.failAuth(ctx, auditEventSignUp, MetricSignUpFailure, key, err)
	}
	if err := e.policy.Check(password); err != nil {
		return nil, e.failAuth(ctx, auditEventSignUp, MetricSignUpFailure, key, err)
	}
	if mapped := e.checkLimiter(ctx, key, auditEventSignUp, MetricSignUpFailure); mapped != nil {
		return nil, mapped
	}

	e.setLoading(PhaseAuthenticating)
	ps, err := e.provider.SignUp(ctx, email, password)
	if err != nil {
		e.limiter.RecordFailure(key)
		return nil, e.failAuth(ctx, auditEventSignUp, MetricSignUpFailure, key, err)
	}
	e.limiter.RecordSuccess(key)

	session, err := e.commitSession(ctx, ps, TransitionLogin)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricSignUpSuccess)
	e.emitAudit(ctx, auditEventSignUp, true, ps.Identity.ID, key, nil, nil)
	return session, nil
}

// SignIn authenticates with email and password. Validation and rate-limit
// failures are returned before any network call; failed provider attempts
// count against the identifier's window, successful ones clear it.
func (e *Engine) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	key := validate.NormalizeEmail(email)

	if err := validate.Email(email); err != nil {
		return nil, e.failAuth(ctx, auditEventSignIn, MetricSignInFailure, key, err)
	}
	if password == "" {
		e.limiter.RecordFailure(key)
		return nil, e.failAuth(ctx, auditEventSignIn, MetricSignInFailure, key, ErrInvalidCredentials)
	}
	if mapped := e.checkLimiter(ctx, key, auditEventSignInRateLimit, MetricSignInRateLimited); mapped != nil {
		return nil, mapped
	}

	e.setLoading(PhaseAuthenticating)
	ps, err := e.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		e.limiter.RecordFailure(key)
		return nil, e.failAuth(ctx, auditEventSignIn, MetricSignInFailure, key, err)
	}
	e.limiter.RecordSuccess(key)

	session, err := e.commitSession(ctx, ps, TransitionLogin)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventSignIn, true, ps.Identity.ID, key, nil, nil)
	return session, nil
}

// SignOut tears the session down. It never fails the session state: the
// provider call and durable wipe are best-effort, local state is cleared
// unconditionally, and a Logout transition is always emitted.
func (e *Engine) SignOut(ctx context.Context) error {
	return e.signOut(ctx, false)
}

func (e *Engine) signOut(ctx context.Context, auto bool) error {
	if e == nil {
		return ErrEngineNotReady
	}

	e.mu.Lock()
	e.cancelRefreshLocked()
	prev := e.identity
	e.setStateLocked(AuthState{Phase: PhaseSigningOut, Authenticated: prev != nil, Identity: prev, Loading: true})
	e.mu.Unlock()

	if err := e.provider.SignOut(ctx); err != nil {
		log.Print("sessionkit: provider sign-out failed")
	}
	if err := e.tokens.Clear(ctx); err != nil {
		log.Print("sessionkit: token clear failed during sign-out")
	}

	e.mu.Lock()
	e.identity = nil
	e.setStateLocked(AuthState{Phase: PhaseAnonymous})
	e.emitLocked(LifecycleEvent{
		ID:         uuid.NewString(),
		Kind:       TransitionLogout,
		Previous:   prev,
		AutoLogout: auto,
		At:         e.now(),
	})
	e.mu.Unlock()

	if auto {
		e.metrics.Inc(MetricAutoLogout)
		e.emitAudit(ctx, auditEventAutoLogout, true, identityID(prev), "", nil, nil)
	} else {
		e.metrics.Inc(MetricSignOut)
		e.emitAudit(ctx, auditEventSignOut, true, identityID(prev), "", nil, nil)
	}
	return nil
}

// RequestPasswordReset asks the provider to start a password reset. The email
// is validated and rate-limited before the network call.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}
	key := "reset:" + validate.NormalizeEmail(email)

	if err := validate.Email(email); err != nil {
		mapped := e.mapper.Map(err)
		e.emitAudit(ctx, auditEventPasswordReset, false, "", key, mapped, nil)
		return mapped
	}
	if err := e.limiter.Check(key); err != nil {
		mapped := e.mapper.Map(err).WithRetryAfter(e.limiter.RetryAfter(key))
		e.emitAudit(ctx, auditEventPasswordReset, false, "", key, mapped, nil)
		return mapped
	}

	if err := e.provider.RequestPasswordReset(ctx, email); err != nil {
		e.limiter.RecordFailure(key)
		mapped := e.mapper.Map(err)
		e.emitAudit(ctx, auditEventPasswordReset, false, "", key, mapped, nil)
		return mapped
	}
	e.limiter.RecordSuccess(key)
	e.metrics.Inc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordReset, true, "", key, nil, nil)
	return nil
}

// commitSession persists the credential artifacts, replaces the state
// snapshot, reschedules auto-refresh, and emits the transition — in that
// order, so listeners never observe a transition before its state is
// externally readable.
func (e *Engine) commitSession(ctx context.Context, ps *ProviderSession, kind TransitionKind) (*Session, error) {
	if err := e.tokens.SetTokens(ctx, ps.AccessToken, ps.RefreshToken, ps.ExpiresAt); err != nil {
		mapped := e.mapper.Map(err)
		e.setFailed(mapped)
		return nil, mapped
	}

	identity := ps.Identity

	e.mu.Lock()
	prev := e.identity
	e.identity = &identity
	e.setStateLocked(AuthState{Phase: PhaseAuthenticated, Authenticated: true, Identity: &identity})
	e.scheduleRefreshLocked()
	e.emitLocked(LifecycleEvent{
		ID:       uuid.NewString(),
		Kind:     kind,
		Identity: &identity,
		Previous: prev,
		At:       e.now(),
	})
	e.mu.Unlock()

	return &Session{
		AccessToken:  ps.AccessToken,
		RefreshToken: ps.RefreshToken,
		ExpiresAt:    ps.ExpiresAt,
		Identity:     identity,
	}, nil
}

// checkLimiter returns the mapped rejection when the identifier is over
// budget, before any network round-trip.
func (e *Engine) checkLimiter(ctx context.Context, key, auditType string, metric MetricID) *Error {
	err := e.limiter.Check(key)
	if err == nil {
		return nil
	}
	mapped := e.mapper.Map(err).WithRetryAfter(e.limiter.RetryAfter(key))
	e.metrics.Inc(metric)
	e.emitAudit(ctx, auditType, false, "", key, mapped, nil)
	return mapped
}

// failAuth maps the failure, records it in state, metrics, and audit, and
// returns the mapped error.
func (e *Engine) failAuth(ctx context.Context, auditType string, metric MetricID, key string, err error) *Error {
	mapped := e.mapper.Map(err)
	e.setFailed(mapped)
	e.metrics.Inc(metric)
	e.emitAudit(ctx, auditType, false, "", key, mapped, nil)
	return mapped
}

func (e *Engine) setLoading(phase Phase) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setStateLocked(AuthState{
		Phase:         phase,
		Authenticated: e.identity != nil,
		Identity:      e.identity,
		Loading:       true,
	})
}

func (e *Engine) setFailed(mapped *Error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	phase := PhaseAnonymous
	if e.identity != nil {
		phase = PhaseAuthenticated
	}
	e.setStateLocked(AuthState{
		Phase:         phase,
		Authenticated: e.identity != nil,
		Identity:      e.identity,
		LastError:     mapped,
	})
}

// setStateLocked replaces the snapshot atomically. Callers hold e.mu.
func (e *Engine) setStateLocked(next AuthState) {
	e.state.Store(&next)
}

// emitLocked delivers the event while holding e.mu, which is what makes
// transitions a queue: the next transition cannot commit until every
// listener has settled.
func (e *Engine) emitLocked(ev LifecycleEvent) {
	e.bus.emit(ev)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, identityID, identifier string, mapped *Error, metadata map[string]string) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp:  e.now(),
		EventType:  eventType,
		IdentityID: identityID,
		Success:    success,
		Metadata:   metadata,
	}
	if identifier != "" {
		event.IdentifierHash = internal.HashIdentifier(identifier)
	}
	if mapped != nil {
		event.Error = mapped.Message
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) reportListenerFailure(err error) {
	e.metrics.Inc(MetricListenerFailure)
	e.emitAudit(context.Background(), auditEventListenerFailure, false, "", "", nil, map[string]string{
		"reason": err.Error(),
	})
	log.Print("sessionkit: transition listener failed")
}

func identityID(identity *Identity) string {
	if identity == nil {
		return ""
	}
	return identity.ID
}
