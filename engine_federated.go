package sessionkit

import (
	"context"
	"errors"

	"github.com/halcyonlabs/sessionkit/federated"
)

// StartFederatedSignIn opens a federated attempt and returns the challenge
// whose nonce the platform sign-in UI must embed in the identity token.
func (e *Engine) StartFederatedSignIn(purpose federated.Purpose) (*federated.Challenge, error) {
	if e == nil || e.flow == nil {
		return nil, ErrEngineNotReady
	}
	challenge, err := e.flow.StartSignIn(purpose)
	if err != nil {
		return nil, e.mapper.Map(err)
	}
	return challenge, nil
}

// HandleFederatedResponse validates the raw platform response: nonce
// (single-use, purpose, freshness) first, then identity-token claims. The
// provider's token exchange is never reached for an invalid response.
// Cancellation surfaces as [ErrFederatedCancelled] so callers can silently
// return to the prior screen.
func (e *Engine) HandleFederatedResponse(ctx context.Context, resp federated.Response, purpose federated.Purpose) (*federated.Result, error) {
	if e == nil || e.flow == nil {
		return nil, ErrEngineNotReady
	}

	result, err := e.flow.HandleResponse(resp, purpose)
	if err != nil {
		mapped := e.mapper.Map(err)
		if errors.Is(err, federated.ErrCancelled) {
			e.metrics.Inc(MetricFederatedCancelled)
		} else {
			e.metrics.Inc(MetricFederatedFailure)
			e.emitAudit(ctx, auditEventFederatedReject, false, "", "", mapped, map[string]string{
				"attempt": resp.AttemptID,
			})
		}
		return nil, mapped
	}
	return result, nil
}

// SignInWithFederated exchanges a validated federated result for a session.
// The rate limiter is keyed by the federated subject, so a hammered relay
// address cannot bypass the window by rotating emails.
func (e *Engine) SignInWithFederated(ctx context.Context, result *federated.Result) (*Session, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	if result == nil || result.IdentityToken == "" {
		return nil, ErrFederatedInvalidToken
	}
	key := "federated:" + result.Subject

	if mapped := e.checkLimiter(ctx, key, auditEventFederatedSignIn, MetricFederatedFailure); mapped != nil {
		return nil, mapped
	}

	e.setLoading(PhaseAuthenticating)
	ps, err := e.provider.SignInWithFederatedToken(ctx, result.IdentityToken, result.Nonce)
	if err != nil {
		e.limiter.RecordFailure(key)
		return nil, e.failAuth(ctx, auditEventFederatedSignIn, MetricFederatedFailure, key, err)
	}
	e.limiter.RecordSuccess(key)

	session, err := e.commitSession(ctx, ps, TransitionLogin)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricFederatedSuccess)
	e.emitAudit(ctx, auditEventFederatedSignIn, true, ps.Identity.ID, key, nil, map[string]string{
		"relay": boolString(result.Relay.IsRelay),
	})
	return session, nil
}

// LinkFederatedAccount links a federated email to an existing account after
// the four linking preconditions hold. Every failing precondition maps to
// [ErrAccountLinkingFailed] with its specific cause preserved for callers
// using errors.Is against the federated sentinels.
func (e *Engine) LinkFederatedAccount(ctx context.Context, federatedEmail, existingEmail string) error {
	if e == nil || e.linker == nil {
		return ErrEngineNotReady
	}

	if err := e.linker.Link(ctx, federatedEmail, existingEmail); err != nil {
		mapped := e.mapper.Map(err)
		e.metrics.Inc(MetricLinkFailure)
		e.emitAudit(ctx, auditEventAccountLink, false, "", "", mapped, nil)
		return mapped
	}
	e.metrics.Inc(MetricLinkSuccess)
	e.emitAudit(ctx, auditEventAccountLink, true, "", "", nil, nil)
	return nil
}

// UnlinkFederatedAccount removes a federated identity from an account. It is
// always attempted when called and surfaces its own failure independently of
// any linking flow.
func (e *Engine) UnlinkFederatedAccount(ctx context.Context, accountID string) error {
	if e == nil || e.linker == nil {
		return ErrEngineNotReady
	}

	if err := e.linker.Unlink(ctx, accountID); err != nil {
		mapped := e.mapper.Map(err)
		e.emitAudit(ctx, auditEventAccountUnlink, false, accountID, "", mapped, nil)
		return mapped
	}
	e.emitAudit(ctx, auditEventAccountUnlink, true, accountID, "", nil, nil)
	return nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
