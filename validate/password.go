package validate

import (
	"fmt"
	"unicode"
)

// PasswordPolicy is the configurable gate applied to new passwords.
// TargetLength only feeds the advisory Strength score.
type PasswordPolicy struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	TargetLength  int
}

// WeakPasswordError carries a human-readable policy reason. The reason
// describes the policy, never the password content.
type WeakPasswordError struct {
	Reason string
}

// Error implements the error interface.
func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("weak password: %s", e.Reason)
}

// Check returns a *WeakPasswordError naming the first violated rule, or nil.
func (p PasswordPolicy) Check(password string) error {
	if len(password) < p.MinLength {
		return &WeakPasswordError{Reason: fmt.Sprintf("must be at least %d characters", p.MinLength)}
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		return &WeakPasswordError{Reason: fmt.Sprintf("must be at most %d characters", p.MaxLength)}
	}

	hasUpper, hasLower, hasDigit, hasSymbol := classify(password)
	if p.RequireUpper && !hasUpper {
		return &WeakPasswordError{Reason: "must contain an uppercase letter"}
	}
	if p.RequireLower && !hasLower {
		return &WeakPasswordError{Reason: "must contain a lowercase letter"}
	}
	if p.RequireDigit && !hasDigit {
		return &WeakPasswordError{Reason: "must contain a digit"}
	}
	if p.RequireSymbol && !hasSymbol {
		return &WeakPasswordError{Reason: "must contain a symbol"}
	}
	return nil
}

// Strength scores a password 0-100 for UI feedback: 40% weight on length up
// to TargetLength, 60% on character-class diversity. Advisory only, never a
// gate.
func (p PasswordPolicy) Strength(password string) int {
	target := p.TargetLength
	if target <= 0 {
		target = 16
	}

	length := len(password)
	if length > target {
		length = target
	}
	lengthScore := 40 * length / target

	classes := 0
	hasUpper, hasLower, hasDigit, hasSymbol := classify(password)
	for _, present := range []bool{hasUpper, hasLower, hasDigit, hasSymbol} {
		if present {
			classes++
		}
	}
	diversityScore := 60 * classes / 4

	return lengthScore + diversityScore
}

func classify(password string) (hasUpper, hasLower, hasDigit, hasSymbol bool) {
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return
}
