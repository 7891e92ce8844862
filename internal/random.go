// Package internal holds coordination helpers shared by sessionkit packages.
// Nothing here is part of the public API.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const nonceSize = 32 // 256 bits of entropy per anti-replay nonce

// NewNonce returns a cryptographically random, base64url-encoded nonce.
func NewNonce() (string, error) {
	var raw [nonceSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashIdentifier returns a stable, non-reversible digest of an identifier
// (e.g. a normalized email) for audit trails. The plain identifier must never
// appear in an emitted event.
func HashIdentifier(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
