// Package validate holds the stateless credential-shape policies consulted
// before any provider call.
package validate

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidEmail indicates the input does not look like a deliverable
// address. Returned, never panicked.
var ErrInvalidEmail = errors.New("invalid email address")

// Conservative local@domain.tld shape. Deliberately stricter than RFC 5322:
// anything this rejects would be rejected by the provider anyway.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// Email rejects empty, whitespace-only, and malformed addresses.
func Email(input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ErrInvalidEmail
	}
	if !emailPattern.MatchString(trimmed) {
		return ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail returns the canonical form used as a rate-limiter key.
func NormalizeEmail(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}
