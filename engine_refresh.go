package sessionkit

import (
	"context"
	"errors"
	"log"
	"time"
)

// RefreshSession exchanges the durable refresh token for a fresh session.
//
// Single-flight: at most one provider refresh call is in flight per engine.
// A concurrent caller is rejected immediately with [ErrRefreshInFlight]
// (retryable) instead of issuing a duplicate provider call.
//
// Refresh failure is fatal and never retried automatically: the engine
// performs a full sign-out, emits a Logout transition with the AutoLogout
// marker, and the caller must re-authenticate.
func (e *Engine) RefreshSession(ctx context.Context) (*Session, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	if !e.refreshing.CompareAndSwap(false, true) {
		e.metrics.Inc(MetricRefreshRejected)
		return nil, ErrRefreshInFlight
	}
	defer e.refreshing.Store(false)

	refresh, err := e.tokens.RefreshToken(ctx)
	if err != nil {
		// Storage trouble is retryable; the session itself is not condemned.
		mapped := e.mapper.Map(err)
		e.metrics.Inc(MetricRefreshFailure)
		return nil, mapped
	}
	if refresh == "" {
		e.metrics.Inc(MetricRefreshFailure)
		if e.AuthState().Authenticated {
			_ = e.signOut(ctx, true)
		}
		return nil, ErrRefreshFailed
	}

	e.setLoading(PhaseRefreshing)
	ps, err := e.provider.RefreshSession(ctx, refresh)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefresh, false, "", "", e.mapper.Map(err), nil)
		_ = e.signOut(ctx, true)
		return nil, ErrRefreshFailed.withCause(err)
	}

	session, err := e.commitSession(ctx, ps, TransitionTokenRefresh)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, err
	}
	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefresh, true, ps.Identity.ID, "", nil, nil)
	return session, nil
}

// Resume restores a session after process start. If a durable refresh token
// exists, the engine either refreshes immediately (lead-time threshold
// already passed or expiry unknown) or schedules the auto-refresh per the
// stored expiry. Without a stored token it stays anonymous and returns nil.
func (e *Engine) Resume(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}

	exists, err := e.tokens.Load(ctx)
	if err != nil {
		return e.mapper.Map(err)
	}
	if !exists {
		return nil
	}

	e.emitAudit(ctx, auditEventSessionRestored, true, "", "", nil, nil)
	if e.tokens.ShouldRefresh() {
		_, err := e.RefreshSession(ctx)
		return err
	}

	e.mu.Lock()
	e.scheduleRefreshLocked()
	e.mu.Unlock()
	return nil
}

// scheduleRefreshLocked arms the one-shot auto-refresh timer, cancelling any
// existing handle first so reschedules never leave a duplicate timer behind.
// A non-positive delay fires on the next scheduling opportunity. Callers
// hold e.mu.
func (e *Engine) scheduleRefreshLocked() {
	e.cancelRefreshLocked()

	delay := e.tokens.TimeToRefresh()
	e.cancelRefresh = e.schedule(delay, func() {
		if _, err := e.RefreshSession(context.Background()); err != nil && !errors.Is(err, ErrRefreshInFlight) {
			log.Print("sessionkit: scheduled session refresh failed")
		}
	})
}

// cancelRefreshLocked stops the pending timer, if any. Callers hold e.mu.
func (e *Engine) cancelRefreshLocked() {
	if e.cancelRefresh != nil {
		e.cancelRefresh()
		e.cancelRefresh = nil
	}
}

func defaultSchedule(d time.Duration, fn func()) func() {
	timer := time.AfterFunc(d, fn)
	return func() { timer.Stop() }
}
