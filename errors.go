package sessionkit

import (
	"fmt"
	"time"
)

// Kind identifies one member of the closed domain error taxonomy. Every
// failure surfaced by the engine carries exactly one Kind; callers switch on
// it instead of inspecting message text.
type Kind uint8

const (
	// KindUnknown is the fallback for failures no other kind describes.
	KindUnknown Kind = iota
	// KindNetwork covers transport-level failures reaching the provider.
	KindNetwork
	// KindTimeout covers provider calls that exceeded their deadline.
	KindTimeout
	// KindInvalidCredentials covers rejected email/password pairs.
	KindInvalidCredentials
	// KindEmailUnverified covers sign-ins blocked on email verification.
	KindEmailUnverified
	// KindUserNotFound covers operations against an unknown account.
	KindUserNotFound
	// KindUserExists covers sign-ups colliding with an existing account.
	KindUserExists
	// KindTokenExpired covers expired access or identity tokens.
	KindTokenExpired
	// KindTokenInvalid covers structurally or semantically invalid tokens.
	KindTokenInvalid
	// KindRefreshFailed covers failed or rejected session refresh attempts.
	KindRefreshFailed
	// KindFederatedCancelled marks a user-cancelled federated sign-in.
	KindFederatedCancelled
	// KindFederatedFailed covers federated flows that failed mid-handshake.
	KindFederatedFailed
	// KindFederatedInvalidToken covers identity tokens failing claims checks.
	KindFederatedInvalidToken
	// KindFederatedEmailRequired marks a federated response without an email.
	KindFederatedEmailRequired
	// KindNonceInvalid covers unknown, consumed, or mismatched nonces.
	KindNonceInvalid
	// KindNonceExpired covers nonces past their freshness or absolute window.
	KindNonceExpired
	// KindSecureStorage covers durable secure-store read/write failures.
	KindSecureStorage
	// KindTooManyRequests marks attempts rejected by the rate limiter.
	KindTooManyRequests
	// KindAccountLocked marks identifiers under an active lockout.
	KindAccountLocked
	// KindInvalidEmail covers inputs rejected by the email validator.
	KindInvalidEmail
	// KindWeakPassword covers inputs rejected by the password policy.
	KindWeakPassword
	// KindAccountLinkingFailed covers failed federated account linking.
	KindAccountLinkingFailed
)

// Error is the normalized failure type crossing the engine boundary. The
// message is generic and user-safe: it never carries raw provider text, an
// email address, or a token.
type Error struct {
	Kind       Kind
	Message    string
	Retryable  bool
	RetryAfter time.Duration

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "sessionkit: nil error"
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains. The
// cause is kept for in-process inspection only and must never be logged or
// shown to a user.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports kind equality so sentinel comparisons via errors.Is work:
// errors.Is(err, ErrInvalidCredentials) matches any *Error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithRetryAfter returns a copy of the error carrying a countdown usable for
// disabling retry actions in a caller's UI.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	dup := *e
	dup.RetryAfter = d
	return &dup
}

func (e *Error) withCause(cause error) *Error {
	dup := *e
	dup.cause = cause
	return &dup
}

// NewError constructs a domain error outside the predefined sentinel set.
// Message hygiene is the caller's responsibility; the engine itself only
// emits the sentinels below.
func NewError(kind Kind, message string, retryable bool) *Error {
	return &Error{Kind: kind, Message: message, Retryable: retryable}
}

// AsError returns err as a *Error when it already is one, and nil otherwise.
func AsError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return nil
}

var (
	// ErrUnknown is the always-retryable generic fallback.
	ErrUnknown = &Error{Kind: KindUnknown, Message: "something went wrong, please try again", Retryable: true}
	// ErrNetwork indicates the provider could not be reached.
	ErrNetwork = &Error{Kind: KindNetwork, Message: "network error, check your connection", Retryable: true}
	// ErrTimeout indicates a provider call exceeded its deadline.
	ErrTimeout = &Error{Kind: KindTimeout, Message: "the request timed out, please try again", Retryable: true}
	// ErrInvalidCredentials indicates a rejected email/password pair.
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "invalid email or password", Retryable: false}
	// ErrEmailUnverified indicates the account email is not verified yet.
	ErrEmailUnverified = &Error{Kind: KindEmailUnverified, Message: "please verify your email address first", Retryable: false}
	// ErrUserNotFound indicates no account matches the identifier.
	ErrUserNotFound = &Error{Kind: KindUserNotFound, Message: "no account found for these details", Retryable: false}
	// ErrUserExists indicates the account already exists.
	ErrUserExists = &Error{Kind: KindUserExists, Message: "an account with these details already exists", Retryable: false}
	// ErrTokenExpired indicates an expired credential artifact.
	ErrTokenExpired = &Error{Kind: KindTokenExpired, Message: "your session has expired, please sign in again", Retryable: false}
	// ErrTokenInvalid indicates an invalid credential artifact.
	ErrTokenInvalid = &Error{Kind: KindTokenInvalid, Message: "your session is no longer valid, please sign in again", Retryable: false}
	// ErrRefreshFailed indicates the session could not be refreshed; the
	// caller must re-authenticate.
	ErrRefreshFailed = &Error{Kind: KindRefreshFailed, Message: "could not restore your session, please sign in again", Retryable: false}
	// ErrRefreshInFlight rejects a refresh attempted while another is in
	// progress. Retryable: the in-flight attempt settles shortly.
	ErrRefreshInFlight = &Error{Kind: KindRefreshFailed, Message: "a session refresh is already in progress", Retryable: true}
	// ErrFederatedCancelled marks a user-cancelled federated sign-in. Callers
	// should return to the previous screen without an error banner.
	ErrFederatedCancelled = &Error{Kind: KindFederatedCancelled, Message: "sign-in was cancelled", Retryable: false}
	// ErrFederatedFailed indicates the federated handshake failed.
	ErrFederatedFailed = &Error{Kind: KindFederatedFailed, Message: "sign-in could not be completed, please try again", Retryable: true}
	// ErrFederatedInvalidToken indicates the identity token failed validation.
	ErrFederatedInvalidToken = &Error{Kind: KindFederatedInvalidToken, Message: "sign-in response could not be verified", Retryable: false}
	// ErrFederatedEmailRequired indicates the federated response carried no
	// usable email address.
	ErrFederatedEmailRequired = &Error{Kind: KindFederatedEmailRequired, Message: "an email address is required to continue", Retryable: false}
	// ErrNonceInvalid indicates an unknown, consumed, or mismatched nonce.
	ErrNonceInvalid = &Error{Kind: KindNonceInvalid, Message: "sign-in request could not be verified, please try again", Retryable: false}
	// ErrNonceExpired indicates the sign-in attempt took too long.
	ErrNonceExpired = &Error{Kind: KindNonceExpired, Message: "sign-in request expired, please try again", Retryable: false}
	// ErrSecureStorage indicates a durable secure-store failure.
	ErrSecureStorage = &Error{Kind: KindSecureStorage, Message: "secure storage is unavailable, please try again", Retryable: true}
	// ErrTooManyRequests indicates the rate limiter rejected the attempt.
	ErrTooManyRequests = &Error{Kind: KindTooManyRequests, Message: "too many attempts, please wait before trying again", Retryable: true}
	// ErrAccountLocked indicates the identifier is under an active lockout.
	ErrAccountLocked = &Error{Kind: KindAccountLocked, Message: "temporarily locked, please wait before trying again", Retryable: true}
	// ErrInvalidEmail indicates the email failed shape validation.
	ErrInvalidEmail = &Error{Kind: KindInvalidEmail, Message: "please enter a valid email address", Retryable: false}
	// ErrWeakPassword indicates the password failed the configured policy.
	ErrWeakPassword = &Error{Kind: KindWeakPassword, Message: "password does not meet the security requirements", Retryable: false}
	// ErrAccountLinkingFailed indicates the account-linking preconditions did
	// not hold.
	ErrAccountLinkingFailed = &Error{Kind: KindAccountLinkingFailed, Message: "accounts could not be linked", Retryable: false}
	// ErrEngineNotReady indicates the engine was used before Build completed.
	ErrEngineNotReady = &Error{Kind: KindUnknown, Message: "engine not initialized", Retryable: false}
)

// weakPassword returns a weak-password error carrying the policy reason.
// Reasons describe the policy, never the password content.
func weakPassword(reason string) *Error {
	return &Error{
		Kind:      KindWeakPassword,
		Message:   fmt.Sprintf("password does not meet the security requirements: %s", reason),
		Retryable: false,
	}
}
