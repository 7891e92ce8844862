package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/halcyonlabs/sessionkit/federated"
	"github.com/halcyonlabs/sessionkit/internal/rate"
	"github.com/halcyonlabs/sessionkit/token"
	"github.com/halcyonlabs/sessionkit/validate"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{BaseDelay: 2 * time.Second, Multiplier: 2, MaxRetries: 3}
}

func TestMapNil(t *testing.T) {
	mapper := NewErrorMapper(testRetryConfig())
	if got := mapper.Map(nil); got != nil {
		t.Fatalf("Map(nil) = %v, want nil", got)
	}
}

func TestMapPassesThroughMappedErrors(t *testing.T) {
	mapper := NewErrorMapper(testRetryConfig())
	if got := mapper.Map(ErrInvalidCredentials); got != ErrInvalidCredentials {
		t.Fatalf("Map(*Error) = %v, want identity pass-through", got)
	}
}

func TestMapSubsystemSentinels(t *testing.T) {
	mapper := NewErrorMapper(testRetryConfig())

	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"storage", fmt.Errorf("wrap: %w", token.ErrStorageUnavailable), KindSecureStorage},
		{"email", validate.ErrInvalidEmail, KindInvalidEmail},
		{"locked", rate.ErrLocked, KindAccountLocked},
		{"rate limited", rate.ErrRateLimited, KindTooManyRequests},
		{"weak password", &validate.WeakPasswordError{Reason: "must contain a digit"}, KindWeakPassword},
		{"cancelled", federated.ErrCancelled, KindFederatedCancelled},
		{"nonce unknown", federated.ErrNonceUnknown, KindNonceInvalid},
		{"nonce purpose", federated.ErrNoncePurpose, KindNonceInvalid},
		{"nonce expired", federated.ErrNonceExpired, KindNonceExpired},
		{"email missing", federated.ErrEmailMissing, KindFederatedEmailRequired},
		{"attempt unknown", federated.ErrAttemptUnknown, KindFederatedFailed},
		{"claims issuer", federated.ErrIssuerMismatch, KindFederatedInvalidToken},
		{"claims malformed", federated.ErrTokenMalformed, KindFederatedInvalidToken},
		{"claims subject", federated.ErrSubjectMissing, KindFederatedInvalidToken},
		{"link same email", federated.ErrLinkSameEmail, KindAccountLinkingFailed},
		{"link taken", federated.ErrLinkEmailTaken, KindAccountLinkingFailed},
		{"unmapped", errors.New("mystery"), KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := mapper.Map(tc.err)
			if mapped.Kind != tc.want {
				t.Fatalf("Map kind = %v, want %v", mapped.Kind, tc.want)
			}
			if !errors.Is(mapped, tc.err) && mapped.Unwrap() == nil {
				t.Fatal("mapped error lost its cause")
			}
		})
	}
}

func TestMapProviderMessageTable(t *testing.T) {
	mapper := NewErrorMapper(testRetryConfig())

	cases := []struct {
		message string
		want    Kind
	}{
		{"Invalid login credentials", KindInvalidCredentials},
		{"  Email not confirmed  ", KindEmailUnverified},
		{"User already registered", KindUserExists},
		{"user not found", KindUserNotFound},
		{"Invalid Refresh Token", KindRefreshFailed},
	}

	for _, tc := range cases {
		err := &ProviderError{Code: "provider_error", Message: tc.message, HTTPStatus: 400}
		mapped := mapper.Map(err)
		if mapped.Kind != tc.want {
			t.Fatalf("Map(%q) kind = %v, want %v", tc.message, mapped.Kind, tc.want)
		}
	}
}

func TestMapProviderHTTPStatus(t *testing.T) {
	mapper := NewErrorMapper(testRetryConfig())

	cases := []struct {
		status    int
		want      Kind
		retryable bool
	}{
		{429, KindTooManyRequests, true},
		{403, KindAccountLocked, true},
		{401, KindInvalidCredentials, false},
		{404, KindUserNotFound, false},
		{409, KindUserExists, false},
		{422, KindUnknown, false},
		{500, KindNetwork, true},
		{503, KindNetwork, true},
	}

	for _, tc := range cases {
		err := &ProviderError{Code: "x", Message: "unrecognized provider text", HTTPStatus: tc.status}
		mapped := mapper.Map(err)
		if mapped.Kind != tc.want {
			t.Fatalf("status %d kind = %v, want %v", tc.status, mapped.Kind, tc.want)
		}
		if mapped.Retryable != tc.retryable {
			t.Fatalf("status %d retryable = %v, want %v", tc.status, mapped.Retryable, tc.retryable)
		}
	}
}

func TestMapThrottleStatusCarriesRetryAfter(t *testing.T) {
	mapper := NewErrorMapper(testRetryConfig())

	mapped := mapper.Map(&ProviderError{Code: "x", Message: "slow down", HTTPStatus: 429})
	if mapped.RetryAfter != 2*time.Second {
		t.Fatalf("RetryAfter = %v, want base delay", mapped.RetryAfter)
	}
}

func TestMapNeverLeaksProviderText(t *testing.T) {
	mapper := NewErrorMapper(testRetryConfig())

	raw := "database error near line 42: user alice@example.com does not exist"
	mapped := mapper.Map(&ProviderError{Code: "x", Message: raw, HTTPStatus: 500})

	if strings.Contains(mapped.Message, "@") {
		t.Fatalf("mapped message contains an address: %q", mapped.Message)
	}
	if strings.Contains(mapped.Message, "alice") || mapped.Message == raw {
		t.Fatalf("mapped message leaks provider text: %q", mapped.Message)
	}
}

func TestMapUnknownFallbackRetryable(t *testing.T) {
	mapper := NewErrorMapper(testRetryConfig())

	mapped := mapper.Map(errors.New("totally novel failure"))
	if mapped.Kind != KindUnknown || !mapped.Retryable {
		t.Fatalf("fallback = {%v retryable=%v}, want retryable unknown", mapped.Kind, mapped.Retryable)
	}
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	mapper := NewErrorMapper(testRetryConfig())

	mapped := mapper.Map(rate.ErrLocked)
	if !errors.Is(mapped, ErrAccountLocked) {
		t.Fatal("errors.Is failed to match by kind")
	}
	if errors.Is(mapped, ErrInvalidCredentials) {
		t.Fatal("errors.Is matched a different kind")
	}
}

func TestRetryBookkeeping(t *testing.T) {
	mapper := NewErrorMapper(testRetryConfig())

	if !mapper.CanRetry("op") {
		t.Fatal("fresh context cannot retry")
	}
	for i := 1; i <= 3; i++ {
		if got := mapper.RecordRetry("op"); got != i {
			t.Fatalf("RecordRetry = %d, want %d", got, i)
		}
	}
	if mapper.CanRetry("op") {
		t.Fatal("CanRetry true past budget")
	}

	mapper.ResetRetryCount("op")
	if got := mapper.RetryCount("op"); got != 0 {
		t.Fatalf("RetryCount after reset = %d", got)
	}
}

func TestRetryDelayGrowsForBackoffKinds(t *testing.T) {
	mapper := NewErrorMapper(testRetryConfig())

	first := mapper.RetryDelay("op", ErrNetwork)
	mapper.RecordRetry("op")
	second := mapper.RetryDelay("op", ErrNetwork)
	mapper.RecordRetry("op")
	third := mapper.RetryDelay("op", ErrNetwork)

	if first != 2*time.Second || second != 4*time.Second || third != 8*time.Second {
		t.Fatalf("backoff = %v, %v, %v", first, second, third)
	}

	// Non-backoff kinds get the flat base delay regardless of count.
	if got := mapper.RetryDelay("op", ErrSecureStorage); got != 2*time.Second {
		t.Fatalf("flat delay = %v, want base", got)
	}
}

func TestRetryDelayHonorsExplicitRetryAfter(t *testing.T) {
	mapper := NewErrorMapper(testRetryConfig())

	mapped := ErrTooManyRequests.WithRetryAfter(90 * time.Second)
	if got := mapper.RetryDelay("op", mapped); got != 90*time.Second {
		t.Fatalf("RetryDelay = %v, want explicit retry-after", got)
	}
}
