package federated

import (
	"errors"
	"testing"
	"time"
)

func testFlowConfig() Config {
	return Config{
		Claims:       testClaimsConfig(),
		Nonce:        testNonceConfig(),
		RelayDomains: []string{"privaterelay.appleid.com"},
	}
}

func newTestFlow() *Flow {
	return NewFlow(testFlowConfig(), claimsClock)
}

// signTokenForNonce builds a valid identity token bound to the given nonce.
func signTokenForNonce(t *testing.T, nonce string, overrides map[string]any) string {
	t.Helper()
	merged := map[string]any{"nonce": nonce}
	for key, value := range overrides {
		merged[key] = value
	}
	return signToken(t, merged)
}

func TestFlowCompletes(t *testing.T) {
	flow := newTestFlow()

	challenge, err := flow.StartSignIn(PurposeSignIn)
	if err != nil {
		t.Fatalf("StartSignIn failed: %v", err)
	}
	if challenge.AttemptID == "" || challenge.Nonce == "" {
		t.Fatalf("incomplete challenge: %+v", challenge)
	}

	raw := signTokenForNonce(t, challenge.Nonce, nil)
	result, err := flow.HandleResponse(Response{AttemptID: challenge.AttemptID, IdentityToken: raw}, PurposeSignIn)
	if err != nil {
		t.Fatalf("HandleResponse failed: %v", err)
	}
	if result.Subject != "subject-123" {
		t.Fatalf("Subject = %q", result.Subject)
	}
	if result.Nonce != challenge.Nonce {
		t.Fatalf("result nonce %q != challenge nonce %q", result.Nonce, challenge.Nonce)
	}
	if result.Relay.IsRelay {
		t.Fatal("regular email classified as relay")
	}
	if flow.PendingAttempts() != 0 {
		t.Fatal("completed attempt not consumed")
	}
}

func TestFlowDetectsRelayEmail(t *testing.T) {
	flow := newTestFlow()

	challenge, err := flow.StartSignIn(PurposeSignIn)
	if err != nil {
		t.Fatalf("StartSignIn failed: %v", err)
	}

	raw := signTokenForNonce(t, challenge.Nonce, map[string]any{"email": "xyz@privaterelay.appleid.com"})
	result, err := flow.HandleResponse(Response{AttemptID: challenge.AttemptID, IdentityToken: raw}, PurposeSignIn)
	if err != nil {
		t.Fatalf("HandleResponse failed: %v", err)
	}
	if !result.Relay.IsRelay || result.Relay.RelayDomain != "privaterelay.appleid.com" {
		t.Fatalf("relay not detected: %+v", result.Relay)
	}
}

func TestFlowCancelledIsTerminal(t *testing.T) {
	flow := newTestFlow()

	challenge, err := flow.StartSignIn(PurposeSignIn)
	if err != nil {
		t.Fatalf("StartSignIn failed: %v", err)
	}

	_, err = flow.HandleResponse(Response{AttemptID: challenge.AttemptID, Cancelled: true}, PurposeSignIn)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("HandleResponse = %v, want ErrCancelled", err)
	}

	// Both the attempt and its nonce are consumed; a retry of the same
	// response cannot resurrect the flow.
	raw := signTokenForNonce(t, challenge.Nonce, nil)
	_, err = flow.HandleResponse(Response{AttemptID: challenge.AttemptID, IdentityToken: raw}, PurposeSignIn)
	if !errors.Is(err, ErrAttemptUnknown) {
		t.Fatalf("replay after cancel = %v, want ErrAttemptUnknown", err)
	}
}

func TestFlowUnknownAttempt(t *testing.T) {
	flow := newTestFlow()
	_, err := flow.HandleResponse(Response{AttemptID: "never-issued"}, PurposeSignIn)
	if !errors.Is(err, ErrAttemptUnknown) {
		t.Fatalf("HandleResponse = %v, want ErrAttemptUnknown", err)
	}
}

func TestFlowRejectsInvalidToken(t *testing.T) {
	flow := newTestFlow()

	challenge, err := flow.StartSignIn(PurposeSignIn)
	if err != nil {
		t.Fatalf("StartSignIn failed: %v", err)
	}

	raw := signTokenForNonce(t, challenge.Nonce, map[string]any{"iss": "https://evil.example.com"})
	_, err = flow.HandleResponse(Response{AttemptID: challenge.AttemptID, IdentityToken: raw}, PurposeSignIn)
	if !errors.Is(err, ErrIssuerMismatch) {
		t.Fatalf("HandleResponse = %v, want ErrIssuerMismatch", err)
	}
	if flow.PendingAttempts() != 0 {
		t.Fatal("rejected attempt not consumed")
	}
}

func TestFlowRejectsTokenWithForeignNonce(t *testing.T) {
	flow := newTestFlow()

	challenge, err := flow.StartSignIn(PurposeSignIn)
	if err != nil {
		t.Fatalf("StartSignIn failed: %v", err)
	}

	raw := signTokenForNonce(t, "some-other-nonce", nil)
	_, err = flow.HandleResponse(Response{AttemptID: challenge.AttemptID, IdentityToken: raw}, PurposeSignIn)
	if !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("HandleResponse = %v, want ErrNonceMismatch", err)
	}
}

func TestFlowSignUpRequiresEmail(t *testing.T) {
	flow := newTestFlow()

	challenge, err := flow.StartSignIn(PurposeSignUp)
	if err != nil {
		t.Fatalf("StartSignIn failed: %v", err)
	}

	raw := signTokenForNonce(t, challenge.Nonce, map[string]any{"email": nil, "email_verified": nil})
	_, err = flow.HandleResponse(Response{AttemptID: challenge.AttemptID, IdentityToken: raw}, PurposeSignUp)
	if !errors.Is(err, ErrEmailMissing) {
		t.Fatalf("HandleResponse = %v, want ErrEmailMissing", err)
	}
}

func TestFlowSignInToleratesMissingEmail(t *testing.T) {
	flow := newTestFlow()

	challenge, err := flow.StartSignIn(PurposeSignIn)
	if err != nil {
		t.Fatalf("StartSignIn failed: %v", err)
	}

	raw := signTokenForNonce(t, challenge.Nonce, map[string]any{"email": nil, "email_verified": nil})
	result, err := flow.HandleResponse(Response{AttemptID: challenge.AttemptID, IdentityToken: raw}, PurposeSignIn)
	if err != nil {
		t.Fatalf("HandleResponse failed: %v", err)
	}
	if result.Email != "" {
		t.Fatalf("Email = %q, want empty", result.Email)
	}
}

func TestFlowExpiredNonce(t *testing.T) {
	clock := newNonceClock()
	clock.current = claimsNow
	flow := NewFlow(testFlowConfig(), clock.now)

	challenge, err := flow.StartSignIn(PurposeSignIn)
	if err != nil {
		t.Fatalf("StartSignIn failed: %v", err)
	}

	clock.advance(6 * time.Minute)
	raw := signTokenForNonce(t, challenge.Nonce, nil)
	_, err = flow.HandleResponse(Response{AttemptID: challenge.AttemptID, IdentityToken: raw}, PurposeSignIn)
	if !errors.Is(err, ErrNonceExpired) {
		t.Fatalf("HandleResponse = %v, want ErrNonceExpired", err)
	}
}
