package federated

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims validation rejects with a specific reason per failing check, never a
// generic failure. Callers map each to its own audit/UI treatment.
var (
	// ErrTokenMalformed indicates the token is not a well-formed three-part
	// compact serialization.
	ErrTokenMalformed = errors.New("identity token malformed")
	// ErrIssuerMismatch indicates the iss claim differs from the expected
	// provider issuer.
	ErrIssuerMismatch = errors.New("identity token issuer mismatch")
	// ErrAudienceMismatch indicates the aud claim does not name the
	// configured client identifier.
	ErrAudienceMismatch = errors.New("identity token audience mismatch")
	// ErrTokenExpired indicates exp is not in the future.
	ErrTokenExpired = errors.New("identity token expired")
	// ErrIssuedAtFuture indicates iat is in the future.
	ErrIssuedAtFuture = errors.New("identity token issued in the future")
	// ErrNonceMismatch indicates the embedded nonce differs from the session
	// nonce.
	ErrNonceMismatch = errors.New("identity token nonce mismatch")
	// ErrSubjectMissing indicates the sub claim is absent or empty.
	ErrSubjectMissing = errors.New("identity token subject missing")
)

// ClaimsConfig pins the expected issuer and audience.
type ClaimsConfig struct {
	Issuer   string
	Audience string
}

// IdentityClaims is the validated view of a federated identity token.
type IdentityClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Nonce         string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

type rawIdentityClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Nonce         string `json:"nonce"`
	jwt.RegisteredClaims
}

// ValidateToken structurally validates a federated identity token against
// the expected issuer, audience, expiry, issue time, session nonce, and
// subject presence. Signature verification is the provider's job during the
// token exchange; this check gates what the client will forward at all.
func ValidateToken(raw string, expectedNonce string, cfg ClaimsConfig, now func() time.Time) (*IdentityClaims, error) {
	if now == nil {
		now = time.Now
	}
	if strings.Count(raw, ".") != 2 {
		return nil, ErrTokenMalformed
	}

	var claims rawIdentityClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return nil, ErrTokenMalformed
	}

	if claims.Issuer != cfg.Issuer {
		return nil, ErrIssuerMismatch
	}
	if !audienceContains(claims.Audience, cfg.Audience) {
		return nil, ErrAudienceMismatch
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now()) {
		return nil, ErrTokenExpired
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(now()) {
		return nil, ErrIssuedAtFuture
	}
	if claims.Nonce != expectedNonce {
		return nil, ErrNonceMismatch
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrSubjectMissing
	}

	out := &IdentityClaims{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Nonce:         claims.Nonce,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	out.ExpiresAt = claims.ExpiresAt.Time
	return out, nil
}

func audienceContains(aud jwt.ClaimStrings, expected string) bool {
	for _, a := range aud {
		if a == expected {
			return true
		}
	}
	return false
}
