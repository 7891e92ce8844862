package sessionkit

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/halcyonlabs/sessionkit/federated"
	"github.com/halcyonlabs/sessionkit/internal/rate"
	"github.com/halcyonlabs/sessionkit/token"
	"github.com/halcyonlabs/sessionkit/validate"
)

// ErrorMapper normalizes heterogeneous provider, network, and subsystem
// failures into the closed [*Error] taxonomy and tracks per-context retry
// counts. Raw provider text never survives the mapping.
type ErrorMapper struct {
	mu      sync.Mutex
	retries map[string]int
	config  RetryConfig
}

// NewErrorMapper creates a mapper with the given retry tuning.
func NewErrorMapper(cfg RetryConfig) *ErrorMapper {
	return &ErrorMapper{
		retries: make(map[string]int),
		config:  cfg,
	}
}

// Known provider messages, matched exactly after lowercasing. First
// precedence tier; extend as provider quirks are discovered.
var providerMessageTable = map[string]*Error{
	"invalid login credentials":             ErrInvalidCredentials,
	"invalid email or password":             ErrInvalidCredentials,
	"email not confirmed":                   ErrEmailUnverified,
	"user already registered":               ErrUserExists,
	"user not found":                        ErrUserNotFound,
	"token has expired or is invalid":       ErrTokenExpired,
	"invalid refresh token":                 ErrRefreshFailed,
	"refresh token not found":               ErrRefreshFailed,
	"invalid token":                         ErrTokenInvalid,
	"signups not allowed for this instance": ErrFederatedFailed,
}

// Map normalizes any failure into a *Error. Precedence: already-mapped
// errors pass through; subsystem sentinels map by identity; provider errors
// map by message table, then HTTP status class; everything else falls back to
// the always-retryable unknown error.
func (m *ErrorMapper) Map(err error) *Error {
	if err == nil {
		return nil
	}
	if mapped := AsError(err); mapped != nil {
		return mapped
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout.withCause(err)
	case errors.Is(err, token.ErrStorageUnavailable):
		return ErrSecureStorage.withCause(err)
	case errors.Is(err, validate.ErrInvalidEmail):
		return ErrInvalidEmail.withCause(err)
	case errors.Is(err, rate.ErrLocked):
		return ErrAccountLocked.withCause(err)
	case errors.Is(err, rate.ErrRateLimited):
		return ErrTooManyRequests.withCause(err)
	}

	var weak *validate.WeakPasswordError
	if errors.As(err, &weak) {
		return weakPassword(weak.Reason).withCause(err)
	}

	if mapped := mapFederated(err); mapped != nil {
		return mapped.withCause(err)
	}

	var provider *ProviderError
	if errors.As(err, &provider) {
		return m.mapProvider(provider).withCause(err)
	}

	return ErrUnknown.withCause(err)
}

func mapFederated(err error) *Error {
	switch {
	case errors.Is(err, federated.ErrCancelled):
		return ErrFederatedCancelled
	case errors.Is(err, federated.ErrNonceUnknown), errors.Is(err, federated.ErrNoncePurpose):
		return ErrNonceInvalid
	case errors.Is(err, federated.ErrNonceExpired):
		return ErrNonceExpired
	case errors.Is(err, federated.ErrEmailMissing):
		return ErrFederatedEmailRequired
	case errors.Is(err, federated.ErrAttemptUnknown):
		return ErrFederatedFailed
	case errors.Is(err, federated.ErrTokenMalformed),
		errors.Is(err, federated.ErrIssuerMismatch),
		errors.Is(err, federated.ErrAudienceMismatch),
		errors.Is(err, federated.ErrTokenExpired),
		errors.Is(err, federated.ErrIssuedAtFuture),
		errors.Is(err, federated.ErrNonceMismatch),
		errors.Is(err, federated.ErrSubjectMissing):
		return ErrFederatedInvalidToken
	case errors.Is(err, federated.ErrLinkSameEmail),
		errors.Is(err, federated.ErrLinkAccountNotFound),
		errors.Is(err, federated.ErrLinkAlreadyLinked),
		errors.Is(err, federated.ErrLinkEmailTaken):
		return ErrAccountLinkingFailed
	}
	return nil
}

func (m *ErrorMapper) mapProvider(provider *ProviderError) *Error {
	if mapped, ok := providerMessageTable[strings.ToLower(strings.TrimSpace(provider.Message))]; ok {
		return mapped
	}

	status := provider.HTTPStatus
	switch {
	case status == 429:
		return ErrTooManyRequests.WithRetryAfter(m.config.BaseDelay)
	case status == 403:
		return ErrAccountLocked.WithRetryAfter(m.config.BaseDelay)
	case status == 401:
		return ErrInvalidCredentials
	case status == 404:
		return ErrUserNotFound
	case status == 409:
		return ErrUserExists
	case status >= 400 && status < 500:
		// Client errors outside the table are not retryable.
		return &Error{Kind: KindUnknown, Message: ErrUnknown.Message, Retryable: false}
	case status >= 500:
		return ErrNetwork
	}
	return ErrUnknown
}

// RecordRetry increments and returns the retry count for a context key.
func (m *ErrorMapper) RecordRetry(contextKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[contextKey]++
	return m.retries[contextKey]
}

// CanRetry reports whether the context key is under its retry budget.
func (m *ErrorMapper) CanRetry(contextKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries[contextKey] < m.config.MaxRetries
}

// ResetRetryCount clears the retry count for a context key.
func (m *ErrorMapper) ResetRetryCount(contextKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.retries, contextKey)
}

// RetryCount returns the current retry count for a context key.
func (m *ErrorMapper) RetryCount(contextKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries[contextKey]
}

// RetryDelay computes how long a caller should wait before retrying:
// the error's explicit retry-after when present, exponential backoff for
// kinds that require it, and the flat base delay otherwise.
func (m *ErrorMapper) RetryDelay(contextKey string, mapped *Error) time.Duration {
	if mapped == nil {
		return 0
	}
	if mapped.RetryAfter > 0 {
		return mapped.RetryAfter
	}
	if requiresBackoff(mapped.Kind) {
		count := m.RetryCount(contextKey)
		return time.Duration(float64(m.config.BaseDelay) * math.Pow(m.config.Multiplier, float64(count)))
	}
	return m.config.BaseDelay
}

func requiresBackoff(kind Kind) bool {
	switch kind {
	case KindTooManyRequests, KindAccountLocked, KindNetwork, KindUnknown:
		return true
	default:
		return false
	}
}
