package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACKeySize is the smallest accepted HS256 key, matching the hash output size.
const MinHMACKeySize = 32

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
}

// HS256Signer implements Signer using HMAC SHA-256 with a shared secret.
type HS256Signer struct {
	kid string
	key []byte
}

// NewSignerHS256 creates an HS256 signer. The key is copied.
func NewSignerHS256(kid string, key []byte) (*HS256Signer, error) {
	if len(key) < MinHMACKeySize {
		return nil, fmt.Errorf("jwtx: HS256 key must be at least %d bytes, got %d", MinHMACKeySize, len(key))
	}
	if kid == "" {
		return nil, errors.New("jwtx: empty kid")
	}
	return &HS256Signer{kid: kid, key: append([]byte(nil), key...)}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }
func (s *HS256Signer) KID() string { return s.kid }

// Sign takes your claims and turns them into a signed JWT string.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
